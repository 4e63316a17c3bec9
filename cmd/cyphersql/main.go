// Command cyphersql parses, plans, and renders a single Cypher statement
// against a fixture schema, printing the resulting SQL. Grounded on
// trigo/cmd/trigo's `query <q>` subcommand, minus the server subcommand
// (supplemental, SPEC_FULL.md "Supplemental modules").
package main

import (
	"fmt"
	"os"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cypher/parser"
	"github.com/cyphersql/core/internal/planner/logical"
	"github.com/cyphersql/core/internal/planner/render"
	"github.com/cyphersql/core/internal/procedure"
	"github.com/cyphersql/core/internal/sqlgen"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: cyphersql <cypher-query>")
		os.Exit(1)
	}
	query := os.Args[1]

	schema := catalog.MustLoadDemoFixture()

	stmt, err := parser.Parse(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}

	if procedure.IsProcedureOnlyStatement(stmt) {
		records, err := procedure.Dispatch(stmt, procedure.NewRegistry(), schema)
		if err != nil {
			fmt.Fprintf(os.Stderr, "procedure error: %v\n", err)
			os.Exit(1)
		}
		for _, rec := range records {
			fmt.Println(rec)
		}
		return
	}

	plan, err := logical.BuildStatement(stmt, schema, logical.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan error: %v\n", err)
		os.Exit(1)
	}

	for i, branch := range plan.Branches {
		rb := render.NewBuilder(schema, branch.Ctes, branch.Scope)
		rp, err := rb.Build(branch.Plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "render error: %v\n", err)
			os.Exit(1)
		}
		sql, err := sqlgen.Emit(rp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "emit error: %v\n", err)
			os.Exit(1)
		}
		if len(plan.Branches) > 1 {
			fmt.Printf("-- branch %d\n", i+1)
		}
		fmt.Println(sql)
	}
}
