package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cohesivestack/valgo"

	"github.com/theapemachine/mcgraph/pkg/errors"
)

/*
Requirement splits a "key==value" dependency pin. ok is false when the
string is not in that form or the key is empty.
*/
func Requirement(pin string) (key, value string, ok bool) {
	key, value, found := strings.Cut(pin, "==")

	if !found || strings.TrimSpace(key) == "" {
		return "", "", false
	}

	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func isRequirement(pin string) bool {
	_, _, ok := Requirement(pin)
	return ok
}

/*
Validate checks the natural-key fields and the shape of the requirement
pins before anything touches the store.
*/
func (card *ModelCard) Validate() error {
	if card == nil {
		return errors.Validation("model card is required")
	}

	val := valgo.Is(
		valgo.String(card.Name, "name").Not().Blank(),
		valgo.String(card.Version, "version").Not().Blank(),
		valgo.String(card.Author, "author").Not().Blank(),
	)

	for i, pin := range card.ModelRequirements {
		val.Is(valgo.String(pin, fmt.Sprintf("model_requirements[%d]", i)).
			Passing(isRequirement, "{{title}} must have the form name==version"))
	}

	return result(val)
}

func (datasheet *Datasheet) Validate() error {
	return result(valgo.Is(valgo.String(datasheet.ID, "id").Not().Blank()))
}

func (device *Device) Validate() error {
	return result(valgo.Is(valgo.String(device.ID, "device_id").Not().Blank()))
}

func (user *User) Validate() error {
	return result(valgo.Is(valgo.String(user.ID, "user_id").Not().Blank()))
}

func (deployment *Deployment) Validate() error {
	val := valgo.Is(valgo.String(deployment.ID, "deployment_id").Not().Blank())

	if deployment.ModelID == "" {
		val.Is(valgo.String(deployment.ModelCardID, "model_id").Not().Blank())
	}

	return result(val)
}

func (experiment *Experiment) Validate() error {
	return result(valgo.Is(
		valgo.String(experiment.ID, "experiment_id").Not().Blank(),
		valgo.String(experiment.SubmittedBy, "submitted_by").Not().Blank(),
	))
}

/*
ValidatePID checks the parts a persistent identifier is derived from.
*/
func ValidatePID(author, name, version string) error {
	return result(valgo.Is(
		valgo.String(author, "author").Not().Blank(),
		valgo.String(name, "name").Not().Blank(),
		valgo.String(version, "version").Not().Blank(),
	))
}

func result(val *valgo.Validation) error {
	if val.Valid() {
		return nil
	}

	messages := make([]string, 0)

	for name, fieldErr := range val.Errors() {
		messages = append(messages, fmt.Sprintf("%s: %s", name, strings.Join(fieldErr.Messages(), ", ")))
	}

	sort.Strings(messages)
	return errors.Validation("%s", strings.Join(messages, "; "))
}
