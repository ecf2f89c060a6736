// Package api exposes the HTTP surface: REST endpoints for creating and
// fetching games, image upload, the websocket entry point, and static
// file serving for the browser client.
package api
