// Package server exposes the orchestration core over HTTP: the chat
// operation (request/response and websocket streaming), conversation and
// document CRUD, and the agent registry read model.
package server
