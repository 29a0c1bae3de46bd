package playback

import "github.com/example/course-platform/services/player/internal/domain"

// Media is the video element a session drives.
type Media interface {
	// Attach loads the lecture's video source.
	Attach(l domain.Lecture)
	// Seek moves playback to seconds once metadata is available.
	Seek(seconds int)
}

// Media-layer error codes, as reported by the HTML media element.
const (
	MediaErrAborted     = 1
	MediaErrNetwork     = 2
	MediaErrDecode      = 3
	MediaErrUnsupported = 4
)

type MediaErrorKind string

const (
	MediaErrorAborted     MediaErrorKind = "aborted"
	MediaErrorNetwork     MediaErrorKind = "network"
	MediaErrorDecode      MediaErrorKind = "decode"
	MediaErrorUnsupported MediaErrorKind = "unsupported_format"
	MediaErrorUnknown     MediaErrorKind = "unknown"
)

// MediaError is a classified playback failure with its user-facing message.
type MediaError struct {
	Code    int            `json:"code"`
	Kind    MediaErrorKind `json:"kind"`
	Message string         `json:"message"`
}

func (e MediaError) Error() string { return "media: " + string(e.Kind) + ": " + e.Message }

// ClassifyMediaError maps a media-layer error code to its kind and message.
func ClassifyMediaError(code int) MediaError {
	switch code {
	case MediaErrAborted:
		return MediaError{Code: code, Kind: MediaErrorAborted, Message: "Video loading was aborted."}
	case MediaErrNetwork:
		return MediaError{Code: code, Kind: MediaErrorNetwork, Message: "A network error occurred while loading the video."}
	case MediaErrDecode:
		return MediaError{Code: code, Kind: MediaErrorDecode, Message: "The video could not be decoded."}
	case MediaErrUnsupported:
		// Indistinguishable from a permanent failure unless the video is re-encoded.
		return MediaError{Code: code, Kind: MediaErrorUnsupported, Message: "This video format is not supported. Please ask an administrator to convert the video to MP4."}
	default:
		return MediaError{Code: code, Kind: MediaErrorUnknown, Message: "The video cannot be played."}
	}
}

// Command is an instruction for a remote media element.
type Command struct {
	Type      string `json:"type"`
	LectureID string `json:"lectureId,omitempty"`
	Src       string `json:"src,omitempty"`
	Position  int    `json:"position"`
}

const (
	CommandAttach = "attach"
	CommandSeek   = "seek"
)

// CommandQueue is a Media that buffers commands for a client that polls for
// them. Like everything else on the control loop it is not locked.
type CommandQueue struct {
	cmds []Command
}

func (q *CommandQueue) Attach(l domain.Lecture) {
	c := Command{Type: CommandAttach, LectureID: l.ID}
	if l.VideoURL != nil {
		c.Src = *l.VideoURL
	}
	q.cmds = append(q.cmds, c)
}

func (q *CommandQueue) Seek(seconds int) {
	q.cmds = append(q.cmds, Command{Type: CommandSeek, Position: seconds})
}

// Drain returns and clears the buffered commands.
func (q *CommandQueue) Drain() []Command {
	out := q.cmds
	q.cmds = nil
	return out
}
