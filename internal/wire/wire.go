// Package wire is the Bolt-like connection facade (C12, spec.md §4.6):
// a state machine driving HELLO/GOODBYE/RESET/RUN/PULL/DISCARD/BEGIN/
// COMMIT/ROLLBACK against a shared per-connection context. Framing and
// byte-level encoding are a collaborator's concern (the gorilla/
// websocket demo transport in cmd/cyphersqld, standing in for Bolt's
// packstream); this package only consumes decoded Message values and
// produces decoded Message responses.
//
// Grounded on trigo/pkg/server's HTTP handler-dispatch structure — one
// method per endpoint, state held on a shared struct, a writeError-style
// failure helper — generalized from request/response to message/
// response-list and from stateless HTTP to a stateful per-connection
// session (spec.md §5: "each connection is processed on its own task...
// short critical sections").
package wire

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cypher/parser"
	"github.com/cyphersql/core/internal/planner/logical"
	"github.com/cyphersql/core/internal/planner/render"
	"github.com/cyphersql/core/internal/procedure"
	"github.com/cyphersql/core/internal/sqlgen"
)

// State is one node of the connection state machine (spec.md §4.6).
type State int

const (
	StateNegotiated State = iota
	StateReady
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNegotiated:
		return "Negotiated"
	case StateReady:
		return "Ready"
	case StateStreaming:
		return "Streaming"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Signature names the Bolt-style message discriminants this facade
// understands (spec.md §6.5).
type Signature string

const (
	MsgHello    Signature = "HELLO"
	MsgGoodbye  Signature = "GOODBYE"
	MsgReset    Signature = "RESET"
	MsgRun      Signature = "RUN"
	MsgPull     Signature = "PULL"
	MsgDiscard  Signature = "DISCARD"
	MsgBegin    Signature = "BEGIN"
	MsgCommit   Signature = "COMMIT"
	MsgRollback Signature = "ROLLBACK"
	MsgSuccess  Signature = "SUCCESS"
	MsgFailure  Signature = "FAILURE"
)

// Message is a decoded wire message: a signature plus a field bag.
// Typed accessors below extract the fields each handler needs (spec.md
// §6.5: "typed accessors (extract_query, extract_parameters,
// extract_auth_token, extract_database)").
type Message struct {
	Signature Signature
	Fields    map[string]any
}

func (m Message) extractQuery() (string, bool) {
	q, ok := m.Fields["query"].(string)
	return q, ok
}

func (m Message) extractParameters() map[string]any {
	if p, ok := m.Fields["parameters"].(map[string]any); ok {
		return p
	}
	return nil
}

func (m Message) extractAuthToken() (string, bool) {
	t, ok := m.Fields["auth_token"].(string)
	return t, ok
}

func (m Message) extractDatabase() (string, bool) {
	d, ok := m.Fields["database"].(string)
	return d, ok
}

// Success builds a SUCCESS message carrying the given metadata.
func Success(fields map[string]any) Message {
	return Message{Signature: MsgSuccess, Fields: fields}
}

// Failure builds a FAILURE message with a Bolt-style error_code
// (spec.md §7: "Maps to a Bolt FAILURE with an error_code string").
func Failure(code, message string) Message {
	return Message{Signature: MsgFailure, Fields: map[string]any{
		"code":    code,
		"message": message,
	}}
}

// BoltError wraps any error surfaced as a FAILURE message, pairing it
// with the Bolt-style error code it maps to.
type BoltError struct {
	Code    string
	Message string
}

func (e *BoltError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const invalidStateCode = "Neo.ClientError.Request.Invalid"

// Authenticator validates an auth token extracted from HELLO, returning
// the authenticated username on success.
type Authenticator func(token string) (user string, ok bool)

// SchemaResolver resolves a schema_name (database name) to the catalog
// to plan and render against.
type SchemaResolver func(schemaName string) (catalog.GraphSchema, bool)

// Session is one connection's state machine and shared mutable context
// (spec.md §4.6: "A shared context holds (state, authenticated_user?,
// current_tx_id?, schema_name?)"). Handle and State take the session's
// lock for the duration of one call (WithCache does not) — a
// short critical section, never held across a suspension point
// (spec.md §5).
type Session struct {
	mu     sync.Mutex
	state  State
	user   string
	txID   string
	schema string

	authenticate   Authenticator
	resolveSchema  SchemaResolver
	procedures     *procedure.Registry
	plannerOptions logical.Options
	cache          PlanCache

	txSeq atomic.Uint64

	pending []procedure.Record // the last RUN's result batch, consumed by PULL/DISCARD
}

// PlanCache is the optional hook a caller (cmd/cyphersqld) can supply to
// skip re-parsing/re-planning a query text already seen for this schema.
// The facade itself has no opinion on how entries are stored — this
// keeps internal/plancache a purely additive dependency of the binary,
// never of the core facade (SPEC_FULL.md: plancache is "disabled by
// default in library use").
type PlanCache interface {
	Get(schemaVersion, query string) (sql string, ok bool)
	Set(schemaVersion, query, sql string)
}

// NewSession starts a connection in the Negotiated state.
func NewSession(auth Authenticator, resolveSchema SchemaResolver, procedures *procedure.Registry) *Session {
	return &Session{
		state:          StateNegotiated,
		authenticate:   auth,
		resolveSchema:  resolveSchema,
		procedures:     procedures,
		plannerOptions: logical.DefaultOptions(),
	}
}

// WithCache attaches an optional plan cache to the session, returning it
// for chaining with NewSession.
func (s *Session) WithCache(cache PlanCache) *Session {
	s.cache = cache
	return s
}

// State returns the session's current state, for test assertions and
// connection-level logging.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle dispatches one incoming message and returns the response
// messages to send back, in order (spec.md §5: "responses are emitted
// strictly in the order their triggers were handled").
func (s *Session) Handle(msg Message) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Signature {
	case MsgHello:
		return s.handleHello(msg)
	case MsgGoodbye:
		return s.handleGoodbye()
	case MsgReset:
		return s.handleReset()
	case MsgRun:
		return s.handleRun(msg)
	case MsgPull:
		return s.handlePullOrDiscard(true)
	case MsgDiscard:
		return s.handlePullOrDiscard(false)
	case MsgBegin:
		return s.handleBegin()
	case MsgCommit:
		return s.handleCommit()
	case MsgRollback:
		return s.handleRollback()
	default:
		return []Message{Failure(invalidStateCode, fmt.Sprintf("unrecognized message %q", msg.Signature))}
	}
}

func (s *Session) handleHello(msg Message) []Message {
	if s.state != StateNegotiated {
		return []Message{Failure(invalidStateCode, "HELLO is only valid in Negotiated")}
	}
	token, _ := msg.extractAuthToken()
	user, ok := s.authenticate(token)
	if !ok {
		s.state = StateFailed
		return []Message{Failure("Neo.ClientError.Security.Unauthorized", "authentication failed")}
	}
	s.user = user
	s.state = StateReady
	if db, ok := msg.extractDatabase(); ok {
		s.schema = db
	}
	return []Message{Success(map[string]any{"server": "cyphersql", "connection_id": fmt.Sprintf("conn-%p", s)})}
}

func (s *Session) handleGoodbye() []Message {
	s.state = StateFailed
	return nil
}

func (s *Session) handleReset() []Message {
	s.txID = ""
	s.pending = nil
	if s.state != StateFailed {
		s.state = StateReady
	} else {
		// RESET from Failed still returns to Ready; only GOODBYE is terminal
		// (spec.md §4.6 lists RESET as unconditional).
		s.state = StateReady
	}
	return []Message{Success(nil)}
}

func (s *Session) handleRun(msg Message) []Message {
	if s.state != StateReady {
		return []Message{Failure(invalidStateCode, "RUN is only valid in Ready")}
	}

	query, ok := msg.extractQuery()
	if !ok || query == "" {
		s.state = StateFailed
		return []Message{Failure("Neo.ClientError.Statement.SyntaxError", "RUN message missing query")}
	}

	records, runErr := s.run(query)
	if runErr != nil {
		s.state = StateReady
		return []Message{toFailure(runErr)}
	}

	s.pending = records
	s.state = StateStreaming
	return []Message{Success(map[string]any{"fields": fieldNames(records)})}
}

// run executes one query end to end: parse, then either procedure
// dispatch or SQL rendering (spec.md §4.6 "either dispatch to procedure
// execution or (in full builds) to SQL rendering").
func (s *Session) run(query string) ([]procedure.Record, error) {
	stmt, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}

	schema, ok := s.resolveSchema(s.schema)
	if !ok {
		return nil, &BoltError{Code: "Neo.ClientError.Database.DatabaseNotFound", Message: fmt.Sprintf("unknown schema %q", s.schema)}
	}

	if procedure.IsProcedureOnlyStatement(stmt) {
		return procedure.Dispatch(stmt, s.procedures, schema)
	}

	if s.cache != nil {
		if sql, ok := s.cache.Get(s.schema, query); ok {
			return []procedure.Record{{"sql": sql, "cached": true}}, nil
		}
	}

	plan, err := logical.BuildStatement(stmt, schema, s.plannerOptions)
	if err != nil {
		return nil, err
	}

	var out []procedure.Record
	for _, branch := range plan.Branches {
		rb := render.NewBuilder(schema, branch.Ctes, branch.Scope)
		rp, err := rb.Build(branch.Plan)
		if err != nil {
			return nil, err
		}
		sql, err := sqlgen.Emit(rp)
		if err != nil {
			return nil, err
		}
		// SQL execution against a live database is out of scope (spec.md §1
		// Non-goals); the rendered statement is surfaced as the sole result
		// row so a caller driving this facade standalone still sees output.
		out = append(out, procedure.Record{"sql": sql})
		if s.cache != nil && len(plan.Branches) == 1 {
			s.cache.Set(s.schema, query, sql)
		}
	}
	return out, nil
}

func (s *Session) handlePullOrDiscard(deliver bool) []Message {
	if s.state != StateStreaming {
		return []Message{Failure(invalidStateCode, "PULL/DISCARD is only valid in Streaming")}
	}
	records := s.pending
	s.pending = nil
	s.state = StateReady
	if !deliver {
		return []Message{Success(map[string]any{"has_more": false})}
	}
	return []Message{Success(map[string]any{"records": records, "has_more": false})}
}

func (s *Session) handleBegin() []Message {
	if s.state != StateReady {
		return []Message{Failure(invalidStateCode, "BEGIN is only valid in Ready")}
	}
	s.txID = fmt.Sprintf("tx-%d", s.txSeq.Add(1))
	return []Message{Success(map[string]any{"tx_id": s.txID})}
}

func (s *Session) handleCommit() []Message {
	if s.txID == "" {
		return []Message{Failure(invalidStateCode, "COMMIT without an active transaction")}
	}
	s.txID = ""
	return []Message{Success(nil)}
}

func (s *Session) handleRollback() []Message {
	if s.txID == "" {
		return []Message{Failure(invalidStateCode, "ROLLBACK without an active transaction")}
	}
	s.txID = ""
	return []Message{Success(nil)}
}

func toFailure(err error) Message {
	if be, ok := err.(*BoltError); ok {
		return Failure(be.Code, be.Message)
	}
	return Failure("Neo.DatabaseError.Statement.ExecutionFailed", err.Error())
}

func fieldNames(records []procedure.Record) []string {
	if len(records) == 0 {
		return nil
	}
	names := make([]string, 0, len(records[0]))
	for k := range records[0] {
		names = append(names, k)
	}
	return names
}
