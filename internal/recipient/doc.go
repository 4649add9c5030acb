// Package recipient owns the recipient lifecycle of a video campaign.
//
// Rules:
//   - Recipients are imported as pending and are never deleted here.
//   - Every status change is a compare-and-set against domain.AllowedFrom,
//     so a stale writer cannot move a recipient backwards.
//   - sent and viewed are driven by external send/view events.
package recipient
