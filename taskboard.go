package taskboard

// a shared task list
// clients mutate tasks over the api and every committed mutation is
// pushed to all live observer connections

// logging convention for taskboard components:
// Info:
//     essential events for abnormal behavior. This level should be silent on normal operation.
//     this includes:
//     - dropped observer connections
//     - store timeouts and abnormal exits
// Debug (V(2)):
//     key events for trace debugging and statistics
//     - frequent events - e.g. mutation, broadcast, register, unregister -
//       with ids that can be used to filter

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func RequireIdFromBytes(idBytes []byte) Id {
	id, err := IdFromBytes(idBytes)
	if err != nil {
		panic(err)
	}
	return id
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return encodeUuid(self)
}

func (self Id) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(encodeUuid(self))
	buff.WriteByte('"')
	return buff.Bytes(), nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) != 38 {
		return fmt.Errorf("invalid length for UUID: %v", len(src))
	}
	buf, err := parseUuid(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

// ids are stored as their uuid string form
func (self Id) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(encodeUuid(self))
}

func (self *Id) UnmarshalBSONValue(t bsontype.Type, src []byte) error {
	var idStr string
	if err := bson.UnmarshalValue(t, src, &idStr); err != nil {
		return err
	}
	buf, err := parseUuid(idStr)
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

// the persisted work item record
// the id is assigned by the store at creation and immutable after that
type Task struct {
	Id          Id     `json:"id" bson:"_id"`
	Description string `json:"description" bson:"description"`
	Status      string `json:"status,omitempty" bson:"status,omitempty"`
	Assignee    *Id    `json:"assignee,omitempty" bson:"assignee,omitempty"`
}

func (self *Task) Copy() *Task {
	taskCopy := *self
	if self.Assignee != nil {
		assignee := *self.Assignee
		taskCopy.Assignee = &assignee
	}
	return &taskCopy
}

// candidate fields for a new task
// the store has not assigned an identity yet
type TaskDraft struct {
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Assignee    *Id    `json:"assignee,omitempty"`
}

// partial fields for an update
// a nil field means absent-and-preserve. a set field means present-and-set.
// there is no way to unset a field with an update.
type TaskUpdate struct {
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Assignee    *Id     `json:"assignee,omitempty"`
}

func (self *TaskUpdate) SetFields() map[string]any {
	setFields := map[string]any{}
	if self.Description != nil {
		setFields["description"] = *self.Description
	}
	if self.Status != nil {
		setFields["status"] = *self.Status
	}
	if self.Assignee != nil {
		setFields["assignee"] = *self.Assignee
	}
	return setFields
}

// applies the present fields on top of `task` and leaves the rest untouched
func (self *TaskUpdate) ApplyTo(task *Task) {
	if self.Description != nil {
		task.Description = *self.Description
	}
	if self.Status != nil {
		task.Status = *self.Status
	}
	if self.Assignee != nil {
		assignee := *self.Assignee
		task.Assignee = &assignee
	}
}
