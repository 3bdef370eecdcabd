package server

import "github.com/alnah/go-mdpreview"

// Message types.
const (
	msgHello  = "hello"
	msgSource = "source"
	msgRender = "render"
	msgScroll = "scroll"
	msgNotice = "notice"
	msgError  = "error"

	msgEdit   = "edit"
	msgMarkup = "markup"
	msgMath   = "math"
	msgLayout = "layout"
)

// inbound is any message a browser sends.
type inbound struct {
	Type     string              `json:"type"`
	Text     *string             `json:"text,omitempty"`
	Engine   string              `json:"engine,omitempty"`
	Viewport *mdpreview.Viewport `json:"viewport,omitempty"`
	Cycle    uint64              `json:"cycle,omitempty"` // frame the layout was measured on
}

type helloMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Text    string `json:"text"`
	Markup  string `json:"markup"`
	Math    string `json:"math"`
}

type sourceMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type renderMessage struct {
	Type   string `json:"type"`
	Cycle  uint64 `json:"cycle"`
	State  string `json:"state"`
	HTML   string `json:"html"`
	Digest string `json:"digest,omitempty"`
}

type scrollMessage struct {
	Type   string  `json:"type"`
	Offset float64 `json:"offset"`
}

type noticeMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
