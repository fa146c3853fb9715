// Package category assigns senders to a fixed set of categories
// (newsletter, marketing, receipt, support, personal, cold_outreach,
// other) through batched model calls, persists the assignments, and
// keeps Gmail labels per category. Manual assignments made through the
// API always win over model ones.
package category
