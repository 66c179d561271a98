// Package alerts evaluates rules against each session's minute scores and
// notifies Slack, Teams or generic HTTP webhooks when a rule fires or
// resolves. Alert IDs are ULIDs.
package alerts
