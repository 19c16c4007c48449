// Package orchestrator drives household commands through their lifecycle:
//
//	text -> Intent -> Command + Draft -> Confirmation -> Execution -> Receipt
//
// Every state change is written together with its audit event in one
// transaction. Vendor work runs between two transactions: the confirmation
// and IN_PROGRESS execution commit first, so a crash during the vendor call
// leaves evidence of the attempt, and the terminal status commits after.
//
// Once an execution is terminal the autopilot signal engine runs outside any
// transaction. Its outcome never changes the returned card.
//
// Concurrent confirm and modify calls against one draft are serialized by a
// lock.Locker keyed by draft id. A draft with an IN_PROGRESS or DONE
// execution cannot be confirmed again or modified; a draft whose executions
// all FAILED may be confirmed again (RETRY).
package orchestrator
