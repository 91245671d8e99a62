package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

// checksumOf hex-encodes the sha256 of data, matching how the plugin
// manager verifies an upload's declared checksum on the finish chunk.
func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pluginChunkSize bounds how much of an upload's payload travels in
// one plugin.upload apply entry — the same chunking spec §4.4
// requires of the wire protocol, done here on the sending side.
const pluginChunkSize = 4 << 20

// PluginCommand returns the plugin subcommand group.
func PluginCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugin",
		Usage: "Manage plugin artifacts",
		Subcommands: []*cli.Command{
			{
				Name:  "publish",
				Usage: "Create a plugin entry and upload its artifact in one step",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true, Usage: "semver"},
					&cli.StringFlag{Name: "platform"},
					&cli.StringFlag{Name: "file", Required: true},
				},
				Action: pluginPublish,
			},
			{
				Name:  "fetch",
				Usage: "Download a plugin artifact to a local file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true},
					&cli.StringFlag{Name: "output", Required: true, Usage: "destination file path"},
				},
				Action: pluginFetch,
			},
			{
				Name:  "remove",
				Usage: "Tombstone a plugin version",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true},
				},
				Action: pluginRemove,
			},
			{
				Name:  "restore",
				Usage: "Restore a tombstoned plugin version",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true},
				},
				Action: pluginRestore,
			},
			{
				Name:  "purge",
				Usage: "Permanently delete a tombstoned plugin version",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true},
				},
				Action: pluginPurge,
			},
			{
				Name:  "get",
				Usage: "Show a plugin version's metadata",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "version", Required: true},
				},
				Action: pluginGet,
			},
			{
				Name:   "list",
				Usage:  "List live plugin versions",
				Action: pluginList,
			},
			{
				Name:   "list-tombstoned",
				Usage:  "List tombstoned plugin versions",
				Action: pluginListTombstoned,
			},
		},
	}
}

func pluginPublish(c *cli.Context) error {
	path := c.String("file")
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	checksum := checksumOf(data)

	name, version := c.String("name"), c.String("version")

	createReq := map[string]any{
		"name":          name,
		"version":       version,
		"platform":      c.String("platform"),
		"declared_size": info.Size(),
		"checksum":      checksum,
	}
	if err := runManage(c, "plugin", "plugin.create", createReq); err != nil {
		return err
	}

	rpc := EnsureRPC(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for offset := 0; offset < len(data); offset += pluginChunkSize {
		end := offset + pluginChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := map[string]any{
			"name":    name,
			"version": version,
			"offset":  offset,
			"data":    data[offset:end],
		}
		payload, err := rpc.Manage(ctx, "plugin", "plugin.upload", chunk)
		if err != nil {
			return fmt.Errorf("uploading chunk at offset %d: %w", offset, err)
		}
		var result struct {
			Finished bool `json:"finished"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &result); err != nil {
				return fmt.Errorf("decoding upload response: %w", err)
			}
		}
		fmt.Printf("uploaded %d/%d bytes\n", end, len(data))
	}

	return nil
}

func pluginFetch(c *cli.Context) error {
	name, version := c.String("name"), c.String("version")
	out, err := os.Create(c.String("output"))
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.String("output"), err)
	}
	defer out.Close()

	rpc := EnsureRPC(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var offset int64
	for {
		req := map[string]any{"name": name, "version": version, "offset": offset, "length": pluginChunkSize}
		payload, err := rpc.Query(ctx, "plugin", "plugin.download", req)
		if err != nil {
			return fmt.Errorf("downloading chunk at offset %d: %w", offset, err)
		}
		var chunk struct {
			Data []byte `json:"data"`
			EOF  bool   `json:"eof"`
		}
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return fmt.Errorf("decoding download response: %w", err)
		}
		if _, err := out.Write(chunk.Data); err != nil {
			return fmt.Errorf("writing %s: %w", c.String("output"), err)
		}
		offset += int64(len(chunk.Data))
		if chunk.EOF || len(chunk.Data) == 0 {
			break
		}
	}
	fmt.Printf("fetched %d bytes to %s\n", offset, c.String("output"))
	return nil
}

func pluginRemove(c *cli.Context) error {
	req := map[string]any{"name": c.String("name"), "version": c.String("version")}
	return runManage(c, "plugin", "plugin.remove", req)
}

func pluginRestore(c *cli.Context) error {
	req := map[string]any{"name": c.String("name"), "version": c.String("version")}
	return runManage(c, "plugin", "plugin.restore", req)
}

func pluginPurge(c *cli.Context) error {
	req := map[string]any{"name": c.String("name"), "version": c.String("version")}
	return runManage(c, "plugin", "plugin.purge", req)
}

func pluginGet(c *cli.Context) error {
	req := map[string]any{"name": c.String("name"), "version": c.String("version")}
	return runQuery(c, "plugin", "plugin.get", req)
}

func pluginList(c *cli.Context) error {
	return runQuery(c, "plugin", "plugin.list", nil)
}

func pluginListTombstoned(c *cli.Context) error {
	return runQuery(c, "plugin", "plugin.list_tombstoned", nil)
}
