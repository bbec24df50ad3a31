package wssurface

import "lectern/internal/playback"

// Commands sent to the browser's media element.
const (
	cmdSetSource   = "set_source"
	cmdClearSource = "clear_source"
	cmdLoad        = "load"
	cmdPlay        = "play"
	cmdPause       = "pause"
	cmdSeek        = "seek"
)

// eventPlayResult answers a play command. It is not a media event and is
// never delivered to listeners.
const eventPlayResult = "play_result"

type command struct {
	Cmd         string `json:"cmd"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Seq         uint64 `json:"seq,omitempty"`
	PositionMS  int64  `json:"position_ms,omitempty"`
}

type message struct {
	Event   string `json:"event"`
	Seq     uint64 `json:"seq,omitempty"`
	Message string `json:"message,omitempty"`
}

func mediaEvent(name string) (playback.Event, bool) {
	switch ev := playback.Event(name); ev {
	case playback.EventError, playback.EventCanPlay, playback.EventWaiting, playback.EventPlaying:
		return ev, true
	}
	return "", false
}
