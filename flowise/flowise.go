// Package flowise provides a client for executing flows hosted on a
// FlowiseAI visual workflow engine. Flows are invoked over HTTP with a
// JSON payload; responses come back either as a decoded JSON value or as a
// lazily consumed stream of text chunks. Failures surface through a closed
// error taxonomy of connection, timeout, and API errors.
package flowise

// Version is the SDK version reported in the User-Agent header.
const Version = "0.1.0"
