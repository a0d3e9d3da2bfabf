package ingest

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
AddDatasheet stores a datasheet, or fills in the properties of the
placeholder that ingestion created for the same id. created is false in
the latter case.
*/
func (engine *Engine) AddDatasheet(ctx context.Context, datasheet *types.Datasheet) (created bool, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("add_datasheet", started, err)
	}(time.Now())

	if err = datasheet.Validate(); err != nil {
		return false, err
	}

	props, err := entityProperties(map[string]any{
		"external_id":     datasheet.ID,
		"name":            datasheet.Name,
		"description":     datasheet.Description,
		"source":          datasheet.Source,
		"download_url":    datasheet.DownloadURL,
		"version":         datasheet.Version,
		"license":         datasheet.License,
		"doi":             datasheet.DOI,
		"target_variable": datasheet.TargetVariable,
	}, datasheet.Properties, datasheet.AdditionalMetadata)

	if err != nil {
		return false, err
	}

	ref := graph.Ref{Kind: graph.KindDatasheet, ID: datasheet.ID}

	if created, err = engine.store.MergeNode(ctx, ref, props); err != nil {
		return false, errors.Store("create_datasheet", err)
	}

	if !created {
		if _, err = engine.store.SetProperties(ctx, ref, props); err != nil {
			return false, errors.Store("update_datasheet", err)
		}
	}

	log.Info("datasheet stored", "id", datasheet.ID, "created", created)
	return created, nil
}

/*
AddDevice stores a new device. An existing device id is an AlreadyExists
error.
*/
func (engine *Engine) AddDevice(ctx context.Context, device *types.Device) (err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("add_device", started, err)
	}(time.Now())

	if err = device.Validate(); err != nil {
		return err
	}

	props, err := entityProperties(map[string]any{
		"device_id":   device.ID,
		"name":        device.Name,
		"description": device.Description,
	}, device.Properties)

	if err != nil {
		return err
	}

	return engine.createUnique(ctx, "create_device", graph.Ref{Kind: graph.KindDevice, ID: device.ID}, props)
}

/*
AddUser stores a new user. An existing user id is an AlreadyExists error.
*/
func (engine *Engine) AddUser(ctx context.Context, user *types.User) (err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("add_user", started, err)
	}(time.Now())

	if err = user.Validate(); err != nil {
		return err
	}

	props, err := entityProperties(map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	}, user.Properties)

	if err != nil {
		return err
	}

	return engine.createUnique(ctx, "create_user", graph.Ref{Kind: graph.KindUser, ID: user.ID}, props)
}

/*
AddDeployment records a deployment of an existing model. Its device and
experiment, when given, must exist too. Deployments are append-only: a
known deployment id is left as it is and only its edges are ensured. The
owning card's cached document is dropped.
*/
func (engine *Engine) AddDeployment(ctx context.Context, deployment *types.Deployment) (created bool, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("add_deployment", started, err)
	}(time.Now())

	if err = deployment.Validate(); err != nil {
		return false, err
	}

	modelID := deployment.ModelID

	if modelID == "" {
		modelID = graph.ModelID(deployment.ModelCardID)
	}

	ref := graph.Ref{Kind: graph.KindDeployment, ID: deployment.ID}
	model := graph.Ref{Kind: graph.KindModel, ID: modelID}
	targets := []graph.Ref{model}

	if deployment.DeviceID != "" {
		targets = append(targets, graph.Ref{Kind: graph.KindDevice, ID: deployment.DeviceID})
	}

	if deployment.ExperimentID != "" {
		targets = append(targets, graph.Ref{Kind: graph.KindExperiment, ID: deployment.ExperimentID})
	}

	if err = engine.requireNodes(ctx, "check_deployment", targets...); err != nil {
		return false, err
	}

	props, err := entityProperties(map[string]any{
		"deployment_id": deployment.ID,
		"name":          deployment.ID,
		"model_id":      modelID,
		"device_id":     deployment.DeviceID,
		"experiment_id": deployment.ExperimentID,
		"start_time":    deployment.StartTime,
		"end_time":      deployment.EndTime,
	}, deployment.Properties)

	if err != nil {
		return false, err
	}

	if created, err = engine.store.MergeNode(ctx, ref, props); err != nil {
		return false, errors.Store("create_deployment", err)
	}

	if err = engine.link(ctx, "link_deployment", model, ref, nil); err != nil {
		return created, err
	}

	for _, target := range targets[1:] {
		if err = engine.link(ctx, "link_deployment", ref, target, nil); err != nil {
			return created, err
		}
	}

	engine.invalidateModel(modelID)

	log.Info("deployment stored", "id", deployment.ID, "model_id", modelID, "created", created)
	return created, nil
}

/*
AddExperiment records an experiment submitted by a user, creating the user
when it is not known yet. Model and device, when given, must exist.
*/
func (engine *Engine) AddExperiment(ctx context.Context, experiment *types.Experiment) (created bool, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("add_experiment", started, err)
	}(time.Now())

	if err = experiment.Validate(); err != nil {
		return false, err
	}

	var targets []graph.Ref

	if experiment.ModelID != "" {
		targets = append(targets, graph.Ref{Kind: graph.KindModel, ID: experiment.ModelID})
	}

	if experiment.DeviceID != "" {
		targets = append(targets, graph.Ref{Kind: graph.KindDevice, ID: experiment.DeviceID})
	}

	if err = engine.requireNodes(ctx, "check_experiment", targets...); err != nil {
		return false, err
	}

	props, err := entityProperties(map[string]any{
		"experiment_id": experiment.ID,
		"submitted_by":  experiment.SubmittedBy,
		"model_id":      experiment.ModelID,
		"device_id":     experiment.DeviceID,
		"start_time":    experiment.StartTime,
		"end_time":      experiment.EndTime,
	}, experiment.Properties)

	if err != nil {
		return false, err
	}

	user := graph.Ref{Kind: graph.KindUser, ID: experiment.SubmittedBy}

	if _, err = engine.store.MergeNode(ctx, user, map[string]any{"username": experiment.SubmittedBy}); err != nil {
		return false, errors.Store("create_user", err)
	}

	ref := graph.Ref{Kind: graph.KindExperiment, ID: experiment.ID}

	if created, err = engine.store.MergeNode(ctx, ref, props); err != nil {
		return false, errors.Store("create_experiment", err)
	}

	for _, target := range append([]graph.Ref{user}, targets...) {
		if err = engine.link(ctx, "link_experiment", ref, target, nil); err != nil {
			return created, err
		}
	}

	if experiment.ModelID != "" {
		engine.invalidateModel(experiment.ModelID)
	}

	log.Info("experiment stored", "id", experiment.ID, "submitted_by", experiment.SubmittedBy, "created", created)
	return created, nil
}

/*
Link connects two existing nodes with the edge type the resolver assigns
to their kinds. created is false when that edge was already there.
*/
func (engine *Engine) Link(ctx context.Context, source, target types.NodeRef) (relType string, created bool, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("link", started, err)
	}(time.Now())

	from, ok := graph.ParseKind(source.Kind)

	if !ok {
		return "", false, errors.Validation("unknown node kind %q", source.Kind)
	}

	to, ok := graph.ParseKind(target.Kind)

	if !ok {
		return "", false, errors.Validation("unknown node kind %q", target.Kind)
	}

	if source.ID == "" || target.ID == "" {
		return "", false, errors.Validation("both nodes need an id")
	}

	if relType, ok = graph.Resolve(string(from), string(to)); !ok {
		return "", false, errors.NotPermitted(string(from), string(to))
	}

	created, err = engine.store.MergeEdge(ctx, graph.Edge{
		From: graph.Ref{Kind: from, ID: source.ID},
		To:   graph.Ref{Kind: to, ID: target.ID},
		Type: relType,
	})

	if err != nil {
		return "", false, errors.Store("link", err)
	}

	engine.invalidateRef(ctx, graph.Ref{Kind: from, ID: source.ID})
	engine.invalidateRef(ctx, graph.Ref{Kind: to, ID: target.ID})

	return relType, created, nil
}

func (engine *Engine) createUnique(ctx context.Context, step string, ref graph.Ref, props map[string]any) error {
	created, err := engine.store.MergeNode(ctx, ref, props)

	if err != nil {
		return errors.Store(step, err)
	}

	if !created {
		return errors.AlreadyExists("%s %q already exists", ref.Kind, ref.ID)
	}

	log.Info("node created", "kind", ref.Kind, "id", ref.ID)
	return nil
}

func (engine *Engine) requireNodes(ctx context.Context, step string, refs ...graph.Ref) error {
	for _, ref := range refs {
		_, ok, err := engine.store.GetNode(ctx, ref)

		if err != nil {
			return errors.Store(step, err)
		}

		if !ok {
			return errors.NotFound("%s %q not found", ref.Kind, ref.ID)
		}
	}

	return nil
}

/*
entityProperties drops blank fields, then merges the sanitized extra maps.
Extra keys may not shadow any named field.
*/
func entityProperties(fields map[string]any, extras ...map[string]any) (map[string]any, error) {
	props := make(map[string]any, len(fields))
	reserved := make([]string, 0, len(fields))

	for key, value := range fields {
		reserved = append(reserved, key)

		switch v := value.(type) {
		case string:
			if v == "" {
				continue
			}
		case *time.Time:
			if v == nil {
				continue
			}

			value = *v
		}

		props[key] = value
	}

	for _, extra := range extras {
		if err := graph.FlattenProperties(props, extra, reserved...); err != nil {
			return nil, err
		}
	}

	return props, nil
}
