// Package ir provides the canonical data types shared by every spotter package.
//
// This package contains type definitions, the canonical operation codec and
// the registered error kinds. All other internal packages import ir; ir
// imports nothing internal. This keeps ir the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - An Operation is identified by the Keccak-256 hash of its canonical
//     encoding; the encoding is the only serialization used for identity
//   - Every variable-length field in the encoding is length-prefixed
//   - Function selectors are a tagged union (Numeric, Name, Raw), never an
//     untyped byte blob
//   - Keepers are 20-byte Ethereum addresses recovered from signatures;
//     executors, proposers and targets are variable-length Accounts
//   - All JSON tags use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
