// Package logging configures structured JSON logging for amanlaunch.
//
// Interactive commands log warnings to stderr unless --debug is given, in
// which case debug logs also go to a size-rotated file under
// ~/.amanlaunch/logs/. The MCP server logs to the file only, because stdout
// carries the JSON-RPC stream.
package logging
