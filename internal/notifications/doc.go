// Package notifications delivers ad-break and failure events via ntfy.
//
// NewService publishes to the topic configured in config.toml and degrades to
// a no-op when no topic is set. Callers publish an Event with a loose Payload;
// the service formats the title, message and tags, and drops events whose
// category is disabled in the [notifications] section.
package notifications
