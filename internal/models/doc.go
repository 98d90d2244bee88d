// package models defines the domain types shared across the application.
//
// Two record families exist: the hand-maintained master list (what the
// collection should contain) and the generated game data (what the last
// successful synchronization produced). The BGG id is the only join key
// between the two.
package models
