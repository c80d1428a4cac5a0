/*
Package testutil provides shared helpers for flowturn tests.

# Capabilities

  - Context helpers: TestContext / TestContextWithTimeout register cleanup
    automatically to prevent leaks
  - Data helpers: MustJSON simplifies building raw tool arguments
  - testutil/mocks: ScriptedProvider (a queue-driven llm.Provider for
    deterministic tool-loop tests) and retrieval tool stubs
*/
package testutil
