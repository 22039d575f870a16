package protocol

// Handshake step tags carried in KeyExchangeData.Step.
const (
	StepServerPublicKey  = "server_public_key"
	StepClientSessionKey = "client_session_key"
	StepComplete         = "complete"
)

// KeyExchangeData is the payload of KEY_EXCHANGE envelopes.
type KeyExchangeData struct {
	Step                string `json:"step"`
	PublicKey           string `json:"public_key,omitempty"`
	EncryptedSessionKey string `json:"encrypted_session_key,omitempty"`
}

// FileData is the payload of FILE envelopes. FileContent is the base64
// encoding of the raw file bytes, inlined into the envelope.
type FileData struct {
	Filename    string `json:"filename"`
	FileContent string `json:"filedata"`
	IsGroup     bool   `json:"is_group,omitempty"`
}

// GroupData is the payload of CREATE_GROUP and JOIN_GROUP envelopes.
type GroupData struct {
	GroupName string `json:"group_name"`
}

// HistoryRequestData is the payload of HISTORY_REQUEST envelopes. Peer is a
// username for private history or a group name when IsGroup is set.
type HistoryRequestData struct {
	Peer    string `json:"other_user"`
	IsGroup bool   `json:"is_group"`
}

// HistoryEntry is one message in a HISTORY_RESPONSE payload. Timestamp is
// RFC 3339.
type HistoryEntry struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver,omitempty"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// HistoryResponseData is the payload of HISTORY_RESPONSE envelopes.
// Messages are ordered oldest-first.
type HistoryResponseData struct {
	Peer     string         `json:"other_user"`
	IsGroup  bool           `json:"is_group"`
	Messages []HistoryEntry `json:"messages"`
}

// UserStatus describes one live user in a LIST_USERS response.
type UserStatus struct {
	Username string `json:"username"`
	Status   string `json:"status"`
}

// UserListData is the payload of LIST_USERS responses.
type UserListData struct {
	Users []UserStatus `json:"users"`
}

// GroupInfo describes one group in a LIST_GROUPS response.
type GroupInfo struct {
	Name    string `json:"name"`
	Creator string `json:"creator"`
}

// GroupListData is the payload of LIST_GROUPS responses.
type GroupListData struct {
	Groups []GroupInfo `json:"groups"`
}

// KeyExchangeData decodes the envelope's payload as key-exchange data.
func (e *Envelope) KeyExchangeData() (*KeyExchangeData, error) {
	var d KeyExchangeData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// FileData decodes the envelope's payload as a file transfer.
func (e *Envelope) FileData() (*FileData, error) {
	var d FileData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GroupData decodes the envelope's payload as a group operation.
func (e *Envelope) GroupData() (*GroupData, error) {
	var d GroupData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// HistoryRequestData decodes the envelope's payload as a history request.
func (e *Envelope) HistoryRequestData() (*HistoryRequestData, error) {
	var d HistoryRequestData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// HistoryResponseData decodes the envelope's payload as a history response.
func (e *Envelope) HistoryResponseData() (*HistoryResponseData, error) {
	var d HistoryResponseData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UserListData decodes the envelope's payload as a user list.
func (e *Envelope) UserListData() (*UserListData, error) {
	var d UserListData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GroupListData decodes the envelope's payload as a group list.
func (e *Envelope) GroupListData() (*GroupListData, error) {
	var d GroupListData
	if err := decodeData(e, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
