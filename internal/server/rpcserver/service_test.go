package rpcserver

import (
	"testing"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/server/router"
)

type fakeGroup struct {
	leader     bool
	leaderAddr string
	submitted  []string
	submitErr  error
}

func (g *fakeGroup) IsLeader() bool     { return g.leader }
func (g *fakeGroup) LeaderAddr() string { return g.leaderAddr }
func (g *fakeGroup) Submit(opType string, payload []byte) ([]byte, error) {
	g.submitted = append(g.submitted, opType)
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return payload, nil
}

func TestDispatchRoutesUnregisteredQueryOpThroughSubmit(t *testing.T) {
	group := &fakeGroup{leader: true}
	s := New()
	s.Bind("namespace", group, QueryDispatcher{})

	result, err := s.Dispatch(router.WireEnvelope{OpType: "namespace.create", Body: []byte(`"payload"`)})
	if err != nil {
		t.Fatal(err)
	}
	if string(result) != `"payload"` {
		t.Fatalf("expected echoed payload, got %s", result)
	}
	if len(group.submitted) != 1 || group.submitted[0] != "namespace.create" {
		t.Fatalf("expected Submit called with namespace.create, got %v", group.submitted)
	}
}

func TestDispatchServesRegisteredQueryDirectlyWithoutSubmit(t *testing.T) {
	group := &fakeGroup{leader: true}
	queried := false
	s := New()
	s.Bind("namespace", group, QueryDispatcher{
		"namespace.get": func(payload []byte) ([]byte, error) {
			queried = true
			return []byte(`{"found":true}`), nil
		},
	})

	result, err := s.Dispatch(router.WireEnvelope{OpType: "namespace.get"})
	if err != nil {
		t.Fatal(err)
	}
	if !queried {
		t.Fatal("expected the query handler to run")
	}
	if string(result) != `{"found":true}` {
		t.Fatalf("unexpected result %s", result)
	}
	if len(group.submitted) != 0 {
		t.Fatalf("expected a registered query to bypass Submit, got %v", group.submitted)
	}
}

func TestDispatchRejectsRegisteredQueryWhenNotLeader(t *testing.T) {
	group := &fakeGroup{leader: false, leaderAddr: "node-b:2"}
	s := New()
	s.Bind("config", group, QueryDispatcher{
		"config.get": func(payload []byte) ([]byte, error) { return []byte("ok"), nil },
	})

	_, err := s.Dispatch(router.WireEnvelope{OpType: "config.get"})
	ce, ok := err.(*errcode.Error)
	if !ok || ce.Code != errcode.NOT_LEADER || ce.Leader != "node-b:2" {
		t.Fatalf("expected NOT_LEADER with leader node-b:2, got %v", err)
	}
}

func TestDispatchUnknownPrefixReturnsUnknownReqType(t *testing.T) {
	s := New()
	_, err := s.Dispatch(router.WireEnvelope{OpType: "mystery.op"})
	if errcode.CodeOf(err) != errcode.UNKNOWN_REQ_TYPE {
		t.Fatalf("expected UNKNOWN_REQ_TYPE, got %v", err)
	}
}

func TestDispatchPropagatesSubmitError(t *testing.T) {
	group := &fakeGroup{leader: true, submitErr: errcode.New(errcode.INPUT_PARAM_ERROR, "bad input")}
	s := New()
	s.Bind("zone", group, QueryDispatcher{})

	_, err := s.Dispatch(router.WireEnvelope{OpType: "zone.create"})
	if errcode.CodeOf(err) != errcode.INPUT_PARAM_ERROR {
		t.Fatalf("expected INPUT_PARAM_ERROR, got %v", err)
	}
}
