// Package ws binds a websocket connection as a display surface.
//
// Client → server: binary frames are input bytes; text frames are JSON
// control messages ({"type":"input","data":"..."}, {"type":"resize",
// "cols":N,"rows":N}, {"type":"quit"}, {"type":"ping"}).
//
// Server → client: binary frames are output bytes and a final text frame
// {"type":"exit",...} reports how the session ended.
package ws
