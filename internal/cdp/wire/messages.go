package wire

// Request types: client -> server. Values start at 1 so a zeroed Type
// is never mistaken for a valid request.
const (
	ReqCreateSurface  Type = iota + 1 // {x,y,w,h int32}
	ReqDestroySurface                 // {id uint32}
	ReqAttachBuffer                   // {id,w,h,stride,format uint32} + 1 fd via ancillary data
	ReqCommit                         // {id uint32}
	ReqFrame                          // {id uint32}
	ReqSetTitle                       // {id uint32, title string}
	ReqSetPanel                       // {id,edge,height uint32}
	ReqDamage                         // {id uint32, x,y,w,h int32}
	ReqSetMode                        // {width,height uint32}
	ReqListWindows                    // {} (no payload)
	ReqRaiseSurface                   // {id uint32}
	ReqClipboardSet                   // {data []byte}
	ReqClipboardGet                   // {} (no payload)
)

// Event types: server -> client. Offset into a disjoint range from
// requests so a frame's type alone identifies which direction it came
// from, catching a misrouted frame immediately instead of silently
// misinterpreting its payload.
const (
	EvtWelcome        Type = iota + 1000 // {screenW,screenH,version uint32}
	EvtSurfaceID                         // {id uint32}
	EvtFrameDone                         // {id uint32}
	EvtPointerMotion                     // {id uint32, x,y int32}
	EvtPointerButton                     // {id,btn,state uint32}
	EvtPointerEnter                      // {id uint32, x,y int32}
	EvtPointerLeave                      // {id uint32}
	EvtKey                               // {keycode,state,char,mods uint32}
	EvtFocusIn                           // {id uint32}
	EvtFocusOut                          // {id uint32}
	EvtConfigure                         // {id,w,h uint32}
	EvtWindowList                        // {entries []WindowListEntry}
	EvtClipboardData                     // {data []byte}
)

// PixelFormat identifies a surface buffer's byte layout.
type PixelFormat uint32

const (
	FormatXRGB8888 PixelFormat = 0
	FormatARGB8888 PixelFormat = 1
)

// PanelEdge identifies which screen edge a panel is anchored to. Only
// EdgeBottom is exercised by the reference compositor but the wire
// format reserves the full set so a client can ask for any edge.
type PanelEdge uint32

const (
	EdgeBottom PanelEdge = iota
	EdgeTop
	EdgeLeft
	EdgeRight
)
