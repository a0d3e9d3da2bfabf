package types

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

/*
Datasheet describes a training dataset. Fields beyond the named ones are
kept in Properties and stored as they are.
*/
type Datasheet struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name,omitempty"`
	Description        string         `json:"description,omitempty"`
	Source             string         `json:"source,omitempty"`
	DownloadURL        string         `json:"download_url,omitempty"`
	Version            string         `json:"version,omitempty"`
	License            string         `json:"license,omitempty"`
	DOI                string         `json:"doi,omitempty"`
	TargetVariable     string         `json:"target_variable,omitempty"`
	AdditionalMetadata map[string]any `json:"additional_metadata,omitempty"`
	Properties         map[string]any `json:"-"`
}

type Device struct {
	ID          string         `json:"device_id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"-"`
}

type User struct {
	ID         string         `json:"user_id"`
	Username   string         `json:"username,omitempty"`
	Email      string         `json:"email,omitempty"`
	Properties map[string]any `json:"-"`
}

/*
Deployment is one run of a model on an optional device. ModelCardID may be
given instead of ModelID; the Model key is then derived from it.
*/
type Deployment struct {
	ID           string         `json:"deployment_id"`
	ModelID      string         `json:"model_id,omitempty"`
	ModelCardID  string         `json:"model_card_id,omitempty"`
	DeviceID     string         `json:"device_id,omitempty"`
	ExperimentID string         `json:"experiment_id,omitempty"`
	StartTime    *time.Time     `json:"start_time,omitempty"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	Properties   map[string]any `json:"-"`
}

type Experiment struct {
	ID          string         `json:"experiment_id"`
	SubmittedBy string         `json:"submitted_by"`
	ModelID     string         `json:"model_id,omitempty"`
	DeviceID    string         `json:"device_id,omitempty"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Properties  map[string]any `json:"-"`
}

func (datasheet *Datasheet) UnmarshalJSON(data []byte) error {
	type plain Datasheet
	extras, err := splitExtras(data, (*plain)(datasheet))
	datasheet.Properties = extras
	return err
}

func (datasheet Datasheet) MarshalJSON() ([]byte, error) {
	type plain Datasheet
	return joinExtras(plain(datasheet), datasheet.Properties)
}

func (device *Device) UnmarshalJSON(data []byte) error {
	type plain Device
	extras, err := splitExtras(data, (*plain)(device))
	device.Properties = extras
	return err
}

func (device Device) MarshalJSON() ([]byte, error) {
	type plain Device
	return joinExtras(plain(device), device.Properties)
}

func (user *User) UnmarshalJSON(data []byte) error {
	type plain User
	extras, err := splitExtras(data, (*plain)(user))
	user.Properties = extras
	return err
}

func (user User) MarshalJSON() ([]byte, error) {
	type plain User
	return joinExtras(plain(user), user.Properties)
}

func (deployment *Deployment) UnmarshalJSON(data []byte) error {
	type plain Deployment
	extras, err := splitExtras(data, (*plain)(deployment))
	deployment.Properties = extras
	return err
}

func (deployment Deployment) MarshalJSON() ([]byte, error) {
	type plain Deployment
	return joinExtras(plain(deployment), deployment.Properties)
}

func (experiment *Experiment) UnmarshalJSON(data []byte) error {
	type plain Experiment
	extras, err := splitExtras(data, (*plain)(experiment))
	experiment.Properties = extras
	return err
}

func (experiment Experiment) MarshalJSON() ([]byte, error) {
	type plain Experiment
	return joinExtras(plain(experiment), experiment.Properties)
}

/*
splitExtras decodes data into target and returns every top-level key the
target's struct does not declare.
*/
func splitExtras(data []byte, target any) (map[string]any, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}

	all := make(map[string]any)

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	for name := range jsonNames(target) {
		delete(all, name)
	}

	if len(all) == 0 {
		return nil, nil
	}

	return all, nil
}

func joinExtras(value any, extras map[string]any) ([]byte, error) {
	data, err := json.Marshal(value)

	if err != nil || len(extras) == 0 {
		return data, err
	}

	all := make(map[string]any)

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	for k, v := range extras {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}

	return json.Marshal(all)
}

func jsonNames(target any) map[string]bool {
	typ := reflect.TypeOf(target)

	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	names := make(map[string]bool, typ.NumField())

	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]

		if name == "" || name == "-" {
			continue
		}

		names[name] = true
	}

	return names
}
