package domain

type RoomID string

// MeetingRoomPrefix namespaces meeting rooms apart from chat scopes. The
// wire protocol keys meetings by meetingId; the registry keys them by
// "meeting_" + meetingId.
const MeetingRoomPrefix = "meeting_"

func MeetingRoomID(meetingID string) RoomID {
	return RoomID(MeetingRoomPrefix + meetingID)
}

// ParticipantInfo is the per-connection roster entry of a meeting room.
// AudioEnabled/VideoEnabled reflect the last stream-status report from that
// connection.
type ParticipantInfo struct {
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	DisplayName  string       `json:"displayName"`
	IsHost       bool         `json:"isHost"`
	AudioEnabled bool         `json:"audioEnabled"`
	VideoEnabled bool         `json:"videoEnabled"`
}

// MeetingRoom exists while at least one participant is joined. The registry
// creates it lazily on first join and deletes it on the last leave.
type MeetingRoom struct {
	ID           RoomID
	Participants map[ConnectionID]*ParticipantInfo
}
