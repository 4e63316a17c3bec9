package wire

import (
	"testing"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/procedure"
)

func testSchema() *catalog.StaticSchema {
	return catalog.NewStaticSchema().AddLabel(&catalog.LabelSchema{
		Label: "User", SourceTable: "users", IDColumn: "user_id",
		PropertyMap: map[string]string{"name": "full_name"},
	})
}

func testSession() *Session {
	auth := func(token string) (string, bool) { return "tester", token != "" }
	resolve := func(name string) (catalog.GraphSchema, bool) { return testSchema(), true }
	return NewSession(auth, resolve, procedure.NewRegistry())
}

func helloMsg() Message {
	return Message{Signature: MsgHello, Fields: map[string]any{"auth_token": "t", "database": "demo"}}
}

func TestHelloTransitionsNegotiatedToReady(t *testing.T) {
	s := testSession()
	if s.State() != StateNegotiated {
		t.Fatalf("new session state = %s, want Negotiated", s.State())
	}
	resp := s.Handle(helloMsg())
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("HELLO response = %+v, want a single SUCCESS", resp)
	}
	if s.State() != StateReady {
		t.Fatalf("state after HELLO = %s, want Ready", s.State())
	}
}

func TestHelloWithBadTokenFails(t *testing.T) {
	s := testSession()
	resp := s.Handle(Message{Signature: MsgHello, Fields: map[string]any{"auth_token": ""}})
	if len(resp) != 1 || resp[0].Signature != MsgFailure {
		t.Fatalf("expected a FAILURE for an empty auth token, got %+v", resp)
	}
	if s.State() != StateFailed {
		t.Fatalf("state after failed HELLO = %s, want Failed", s.State())
	}
}

func TestRunRequiresReadyState(t *testing.T) {
	s := testSession()
	resp := s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "RETURN 1"}})
	if len(resp) != 1 || resp[0].Signature != MsgFailure {
		t.Fatalf("RUN before HELLO should fail, got %+v", resp)
	}
	if resp[0].Fields["code"] != invalidStateCode {
		t.Errorf("expected invalid-state error code, got %v", resp[0].Fields["code"])
	}
}

func TestRunThenPullDeliversRecords(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())

	resp := s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "MATCH (u:User) RETURN u.name"}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("RUN response = %+v", resp)
	}
	if s.State() != StateStreaming {
		t.Fatalf("state after RUN = %s, want Streaming", s.State())
	}

	resp = s.Handle(Message{Signature: MsgPull, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("PULL response = %+v", resp)
	}
	if s.State() != StateReady {
		t.Fatalf("state after PULL = %s, want Ready", s.State())
	}
	if _, ok := resp[0].Fields["records"]; !ok {
		t.Errorf("expected PULL success to carry records")
	}
}

func TestDiscardDropsRecordsWithoutDelivering(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())
	s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "MATCH (u:User) RETURN u.name"}})

	resp := s.Handle(Message{Signature: MsgDiscard, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("DISCARD response = %+v", resp)
	}
	if _, ok := resp[0].Fields["records"]; ok {
		t.Errorf("DISCARD should not carry records")
	}
}

func TestPullRequiresStreamingState(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())
	resp := s.Handle(Message{Signature: MsgPull, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgFailure {
		t.Fatalf("PULL outside Streaming should fail, got %+v", resp)
	}
}

func TestResetReturnsToReadyFromAnyState(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())
	s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "MATCH (u:User) RETURN u.name"}})
	if s.State() != StateStreaming {
		t.Fatalf("precondition: expected Streaming, got %s", s.State())
	}
	s.Handle(Message{Signature: MsgReset, Fields: map[string]any{}})
	if s.State() != StateReady {
		t.Fatalf("state after RESET = %s, want Ready", s.State())
	}
}

func TestGoodbyeIsTerminal(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())
	s.Handle(Message{Signature: MsgGoodbye, Fields: map[string]any{}})
	if s.State() != StateFailed {
		t.Fatalf("state after GOODBYE = %s, want Failed (terminal)", s.State())
	}
}

func TestBeginCommitRollback(t *testing.T) {
	s := testSession()
	s.Handle(helloMsg())

	resp := s.Handle(Message{Signature: MsgBegin, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("BEGIN response = %+v", resp)
	}
	txID, _ := resp[0].Fields["tx_id"].(string)
	if txID == "" {
		t.Fatalf("expected BEGIN to assign a tx_id")
	}

	resp = s.Handle(Message{Signature: MsgCommit, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("COMMIT response = %+v", resp)
	}

	resp = s.Handle(Message{Signature: MsgRollback, Fields: map[string]any{}})
	if len(resp) != 1 || resp[0].Signature != MsgFailure {
		t.Fatalf("ROLLBACK without an active tx should fail, got %+v", resp)
	}
}

type fakeCache struct {
	sql string
	hit bool
}

func (c *fakeCache) Get(schemaVersion, query string) (string, bool) { return c.sql, c.hit }
func (c *fakeCache) Set(schemaVersion, query, sql string)           { c.sql, c.hit = sql, true }

func TestWithCacheShortCircuitsRun(t *testing.T) {
	s := testSession()
	s.WithCache(&fakeCache{sql: "SELECT 1", hit: true})
	s.Handle(helloMsg())

	resp := s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "MATCH (u:User) RETURN u.name"}})
	if len(resp) != 1 || resp[0].Signature != MsgSuccess {
		t.Fatalf("RUN response = %+v", resp)
	}

	pull := s.Handle(Message{Signature: MsgPull, Fields: map[string]any{}})
	records, _ := pull[0].Fields["records"].([]procedure.Record)
	if len(records) != 1 || records[0]["sql"] != "SELECT 1" || records[0]["cached"] != true {
		t.Errorf("expected the cached SQL to be surfaced as the sole record, got %+v", records)
	}
}

func TestUnknownSchemaFailsRun(t *testing.T) {
	auth := func(token string) (string, bool) { return "tester", token != "" }
	resolve := func(name string) (catalog.GraphSchema, bool) { return nil, false }
	s := NewSession(auth, resolve, procedure.NewRegistry())
	s.Handle(helloMsg())

	resp := s.Handle(Message{Signature: MsgRun, Fields: map[string]any{"query": "MATCH (u:User) RETURN u.name"}})
	if len(resp) != 1 || resp[0].Signature != MsgFailure {
		t.Fatalf("expected a FAILURE for an unresolvable schema, got %+v", resp)
	}
}
