// Package domain holds the shared types of the Halo command backend: verbs,
// intents, cards, event and entity names, persisted records and the per-verb
// typed views of draft payloads.
//
// All other internal packages import domain; domain imports nothing internal.
//
// Conventions:
//   - All JSON tags use snake_case
//   - Money is always integer cents (int64)
//   - Timestamps are UTC; persistence stores them as unix nanoseconds
//   - Open payloads are Blob values; code that needs structure decodes a
//     typed view at the point of use
package domain
