// package bgg implements the BoardGameGeek XML API client stack.
//
// Client issues raw HTTP calls with retry, backoff and rate-limit pacing.
// ResponseCache short-circuits repeat /thing lookups with per-id disk files.
// The parser extracts typed game, expansion and search records from the XML
// documents. Lookup layers name-to-id resolution with a persistent cache on
// top of all three.
package bgg
