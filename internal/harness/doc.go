// Package harness provides scenario-driven conformance testing for the
// stock ledger.
//
// Scenarios are YAML files that seed a catalog, run a flow of ledger
// operations, and assert on the resulting document. Each run produces a
// deterministic trace suitable for golden snapshot comparison.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario exercises"
//	setup:
//	  products:
//	    - id: p1
//	      title: Gorro de lana
//	      category: Ropa
//	      variants:
//	        - id: v1
//	          name: "Único"
//	          stock: 5
//	flow:
//	  - op: append
//	    variant: v1
//	    type: sale
//	    change: -2
//	    expect:
//	      stock: 3
//	assertions:
//	  - type: stock
//	    variant: v1
//	    value: 3
//	  - type: verify_clean
//
// Setup is raw: products and ledgers are written to the document
// verbatim, with identifiers taken from the scenario. A variant without
// an explicit ledger gets one synthesized Initial movement equal to its
// stock; a variant whose id already has a ledger (the duplicate-id
// corruption) gets nothing. This lets scenarios reproduce historical
// corruption that the normal write path refuses to create.
//
// # Operations
//
//   - append: append one movement to a variant's ledger
//   - delete_movements: delete ledger entries by timestamp-order index
//   - repair: reassign duplicated variant ids
//   - merge: fold one product into another
//   - delete_product: remove a product, keeping its ledgers
//
// # Assertion Types
//
//   - stock: a variant's live stock
//   - ledger_len: number of entries in a variant's ledger
//   - ledger_stocks: the replayed NewStock sequence of a ledger
//   - product_stock: sum of a product's variant stocks
//   - product_count: number of products in the document
//   - audit_len: number of audit log entries
//   - verify_clean: the whole document passes invariant verification
//
// # Deterministic Testing
//
// Scenarios execute against a fresh in-memory database with a stepping
// test clock, and identifiers for everything the scenario touches come
// from the scenario itself. Traces therefore contain no generated ids
// or wall-clock timestamps and are identical across runs.
package harness
