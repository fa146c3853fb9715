// Package coldemail implements the cold email blocker. A sender is
// cold when the account has no relationship with them (never sent them
// mail, not in contacts, no allow record) and the model judges the
// message an unsolicited pitch. Blocked mail is labeled, archived,
// marked read, and the sender recorded so later mail from them is
// blocked without another model call.
package coldemail
