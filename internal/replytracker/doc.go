// Package replytracker maintains the reply-tracking inbox view. Threads
// whose last message is inbound and still in the inbox need a reply
// from the user; outbound messages that ask a question or request a
// follow-up put the thread into awaiting-reply. The tracker keeps
// "To Reply" and "Awaiting Reply" Gmail labels in sync with the stored
// trackers and resolves them when the other side (or the user) replies.
package replytracker
