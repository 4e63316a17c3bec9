// Command cyphersqld is the demo server binary: it wires the wire
// facade (internal/wire), a gorilla/websocket demo transport standing in
// for Bolt's TCP framing, and the optional plan cache together behind a
// `demo`/`query`/`serve` command dispatch. Grounded on trigo/cmd/trigo's
// main.go, which structures its own demo/query/serve commands the same
// way (SPEC_FULL.md "Supplemental modules").
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/plancache"
	"github.com/cyphersql/core/internal/procedure"
	"github.com/cyphersql/core/internal/wire"
	"github.com/gorilla/websocket"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo()
	case "query":
		if len(os.Args) < 3 {
			fmt.Println("Usage: cyphersqld query <cypher-query>")
			os.Exit(1)
		}
		runQuery(os.Args[2])
	case "serve":
		addr := "localhost:7687"
		if len(os.Args) >= 3 {
			addr = os.Args[2]
		}
		runServe(addr)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: cyphersqld <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  demo         - drive the wire facade through a scripted session")
	fmt.Println("  query <q>    - run one query through the wire facade and print the SQL")
	fmt.Println("  serve [addr] - start a websocket listener speaking the wire protocol (default: localhost:7687)")
}

func newDemoSession(cache *plancache.Cache) *wire.Session {
	registry := procedure.NewRegistry()
	registry.Register("db.labels", func(schema catalog.GraphSchema) ([]procedure.Record, error) {
		var out []procedure.Record
		for _, l := range schema.Labels() {
			out = append(out, procedure.Record{"label": l})
		}
		return out, nil
	})

	auth := func(token string) (string, bool) {
		return "demo", token != ""
	}
	resolveSchema := func(name string) (catalog.GraphSchema, bool) {
		return catalog.MustLoadDemoFixture(), true
	}
	session := wire.NewSession(auth, resolveSchema, registry)
	if cache != nil {
		session = session.WithCache(cacheAdapter{cache})
	}
	return session
}

// cacheAdapter bridges plancache.Cache's Key-based Get/Set to the plain
// (schemaVersion, query) shape wire.PlanCache expects, keeping
// internal/wire free of any dependency on internal/plancache.
type cacheAdapter struct {
	cache *plancache.Cache
}

func (a cacheAdapter) Get(schemaVersion, query string) (string, bool) {
	return a.cache.Get(plancache.Key{SchemaVersion: schemaVersion, QueryText: query})
}

func (a cacheAdapter) Set(schemaVersion, query, sql string) {
	a.cache.Set(plancache.Key{SchemaVersion: schemaVersion, QueryText: query}, sql)
}

func runDemo() {
	session := newDemoSession(nil)

	steps := []wire.Message{
		{Signature: wire.MsgHello, Fields: map[string]any{"auth_token": "demo-token", "database": "demo"}},
		{Signature: wire.MsgRun, Fields: map[string]any{"query": "MATCH (p:Person)-[:FOLLOWS]->(q:Person) RETURN p.name, q.name"}},
		{Signature: wire.MsgPull, Fields: map[string]any{}},
		{Signature: wire.MsgReset, Fields: map[string]any{}},
		{Signature: wire.MsgGoodbye, Fields: map[string]any{}},
	}

	for _, msg := range steps {
		fmt.Printf("--> %s\n", msg.Signature)
		for _, resp := range session.Handle(msg) {
			b, _ := json.MarshalIndent(resp.Fields, "    ", "  ")
			fmt.Printf("<-- %s %s\n", resp.Signature, b)
		}
		fmt.Printf("    state: %s\n", session.State())
	}
}

func runQuery(query string) {
	session := newDemoSession(nil)
	session.Handle(wire.Message{Signature: wire.MsgHello, Fields: map[string]any{"auth_token": "cli", "database": "demo"}})
	for _, resp := range session.Handle(wire.Message{Signature: wire.MsgRun, Fields: map[string]any{"query": query}}) {
		if resp.Signature == wire.MsgFailure {
			log.Fatalf("%v", resp.Fields)
		}
	}
	for _, resp := range session.Handle(wire.Message{Signature: wire.MsgPull, Fields: map[string]any{}}) {
		b, _ := json.MarshalIndent(resp.Fields, "", "  ")
		fmt.Println(string(b))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func runServe(addr string) {
	cacheDir := os.Getenv("CYPHERSQLD_CACHE_DIR")
	var backend plancache.Backend = plancache.NewMemoryBackend()
	if cacheDir != "" {
		b, err := plancache.OpenBadgerBackend(cacheDir)
		if err != nil {
			log.Fatalf("opening plan cache: %v", err)
		}
		backend = b
	}
	cache := plancache.New(backend)
	defer cache.Close()

	http.HandleFunc("/wire", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serveConnection(conn, cache)
	})

	fmt.Printf("cyphersqld listening on ws://%s/wire\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// serveConnection runs one connection's session loop: each websocket
// text frame is a JSON-encoded wire.Message, handled strictly in
// arrival order (spec.md §5: "messages on a single connection are
// processed strictly in arrival order").
func serveConnection(conn *websocket.Conn, cache *plancache.Cache) {
	session := newDemoSession(cache)
	for {
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		for _, resp := range session.Handle(msg) {
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
		if msg.Signature == wire.MsgGoodbye {
			return
		}
	}
}
