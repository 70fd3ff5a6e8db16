package taskboard

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// structural validity of incoming task payloads, checked before any
// store access. validation is pure and never touches storage.

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var taskCreateSchema = jsonschema.MustCompileString("task_create.json", fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"description": {"type": "string", "minLength": 1},
		"status": {"type": "string"},
		"assignee": {"type": "string", "pattern": "%s"}
	},
	"required": ["description"],
	"additionalProperties": false
}`, uuidPattern))

var taskUpdateSchema = jsonschema.MustCompileString("task_update.json", fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"description": {"type": "string", "minLength": 1},
		"status": {"type": "string"},
		"assignee": {"type": "string", "pattern": "%s"}
	},
	"additionalProperties": false
}`, uuidPattern))

type TaskValidator struct {
}

func NewTaskValidator() *TaskValidator {
	return &TaskValidator{}
}

// checks a candidate for a new task.
// a candidate with an absent, non-text, or empty description never
// reaches the store.
func (self *TaskValidator) ValidateCreate(payload []byte) (*TaskDraft, error) {
	if err := self.validate(taskCreateSchema, payload); err != nil {
		return nil, err
	}

	draft := &TaskDraft{}
	if err := json.Unmarshal(payload, draft); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return draft, nil
}

// checks a partial field set for an update.
// every field is optional. present fields must still be well formed.
func (self *TaskValidator) ValidateUpdate(payload []byte) (*TaskUpdate, error) {
	if err := self.validate(taskUpdateSchema, payload); err != nil {
		return nil, err
	}

	update := &TaskUpdate{}
	if err := json.Unmarshal(payload, update); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return update, nil
}

func (self *TaskValidator) validate(schema *jsonschema.Schema, payload []byte) error {
	var candidate any
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return NewValidationError(fmt.Sprintf("payload is not valid json: %s", err))
	}

	if err := schema.Validate(candidate); err != nil {
		validationErr := &ValidationError{}
		if schemaErr, ok := err.(*jsonschema.ValidationError); ok {
			collectSchemaCauses(schemaErr, validationErr)
		} else {
			validationErr.Causes = append(validationErr.Causes, err.Error())
		}
		return validationErr
	}
	return nil
}

func collectSchemaCauses(err *jsonschema.ValidationError, validationErr *ValidationError) {
	if len(err.Causes) == 0 {
		cause := err.Message
		if err.InstanceLocation != "" {
			cause = fmt.Sprintf("%s: %s", err.InstanceLocation, err.Message)
		}
		validationErr.Causes = append(validationErr.Causes, cause)
		return
	}
	for _, child := range err.Causes {
		collectSchemaCauses(child, validationErr)
	}
}
