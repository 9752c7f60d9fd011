package protocol

// Client -> server message types.
const (
	MsgAuth       = "auth"
	MsgListRooms  = "listRooms"
	MsgCreateRoom = "createRoom"
	MsgJoinRoom   = "joinRoom"
	MsgLeaveRoom  = "leaveRoom"
	MsgReady      = "ready"
	MsgCoinCall   = "coinCall"
	MsgPickupBall = "pickupBall"
	MsgReleaseBall = "releaseBall"
	MsgBall       = "ball"
	MsgPosition   = "position"
	MsgScore      = "score"
)

// Server -> client message types.
const (
	MsgAuthOK      = "authOk"
	MsgCoins       = "coins"
	MsgRooms       = "rooms"
	MsgJoinedRoom  = "joinedRoom"
	MsgLeftRoom    = "leftRoom"
	MsgBothReady   = "bothReady"
	MsgCoinPrompt  = "coinPrompt"
	MsgCoinStart   = "coinStart"
	MsgCoinFlip    = "coinFlip"
	MsgRoles       = "roles"
	MsgBallOwner   = "ballOwner"
	MsgScoreUpdate = "score"
	MsgResume      = "resume"
	MsgGameOver    = "gameOver"
	MsgWinByForfeit = "winByForfeit"
	MsgToast       = "toast"
	MsgError       = "error"
)

// Error codes carried on MsgError.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeFull              = "FULL"
	CodeLoginRequired     = "LOGIN_REQUIRED"
	CodeWrongPassword     = "WRONG_PASSWORD"
	CodePasswordRequired  = "PASSWORD_REQUIRED"
	CodeInvalidState      = "INVALID_STATE"
	CodeBadType           = "BAD_TYPE"
	CodeAuthFail          = "AUTH_FAIL"
	CodeInsufficientCoins = "INSUFFICIENT_COINS"
	CodeAlreadyPaid       = "ALREADY_PAID"
	CodeNotWinner         = "NOT_WINNER"
	CodeLedgerFail        = "LEDGER_FAIL"
)

// ClientMessage is the closed set of messages a client may send, as one flat
// struct with a type tag. Anything outside the known set is answered with
// BAD_TYPE at the dispatch boundary.
type ClientMessage struct {
	Type string `json:"type"`

	// auth
	Token string `json:"token,omitempty"`

	// createRoom
	Name       string `json:"name,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	ScoreToWin int    `json:"scoreToWin,omitempty"`
	Wager      int64  `json:"wager,omitempty"`
	AutoJoin   bool   `json:"autoJoin,omitempty"`

	// joinRoom (Password is shared with createRoom)
	RoomID   string `json:"roomId,omitempty"`
	Password string `json:"password,omitempty"`

	// coinCall
	Call string `json:"call,omitempty"`

	// ball / position
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Z      float64 `json:"z,omitempty"`
	VX     float64 `json:"vx,omitempty"`
	VY     float64 `json:"vy,omitempty"`
	VZ     float64 `json:"vz,omitempty"`
	Held   bool    `json:"held,omitempty"`
	Facing float64 `json:"facing,omitempty"`
}

// RoomSummary is one row of the lobby browser list.
type RoomSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Max        int    `json:"max"`
	Mode       string `json:"mode"`
	ScoreToWin int    `json:"scoreToWin"`
	Visibility string `json:"visibility"`
	Wager      int64  `json:"wager"`
}

// ServerMessage is the closed set of messages the server may send.
type ServerMessage struct {
	Type string `json:"type"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Level   string `json:"level,omitempty"`

	UID         string `json:"uid,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Balance     int64  `json:"balance,omitempty"`

	Rooms []RoomSummary `json:"rooms,omitempty"`

	RoomID     string `json:"roomId,omitempty"`
	Role       string `json:"role,omitempty"`
	ScoreToWin int    `json:"scoreToWin,omitempty"`

	Caller    string `json:"caller,omitempty"`
	Call      string `json:"call,omitempty"`
	Result    string `json:"result,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
	SpinMs    int    `json:"spinMs,omitempty"`

	Offense string `json:"offense,omitempty"`
	Defense string `json:"defense,omitempty"`

	// Zero is meaningful for the ball fields (a recentered ball sits at the
	// origin with no velocity, an unowned ball has owner "" and held false),
	// so none of them may be dropped from the frame.
	Owner string `json:"owner"`
	Held  bool   `json:"held"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	VZ     float64 `json:"vz"`
	Seq    uint64  `json:"seq"`
	Facing float64 `json:"facing"`

	Scorer   string         `json:"scorer,omitempty"`
	Scores   map[string]int `json:"scores,omitempty"`
	FreezeMs int            `json:"freezeMs,omitempty"`
	Winner   string         `json:"winner,omitempty"`
}

// Error builds a structured error reply.
func Error(code, message string) ServerMessage {
	return ServerMessage{Type: MsgError, Code: code, Message: message}
}

// Toast builds the informational toast the original client shows.
func Toast(level, message string) ServerMessage {
	return ServerMessage{Type: MsgToast, Level: level, Message: message}
}
