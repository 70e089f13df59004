// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"path"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/pipeline"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/upload"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/utils"
)

var statusMerge = utils.MergeConfig{"files": "path"}

// Upload esegue:
// - creazione survey (se ID vuoto) in stato CREATED
// - transizione a UPLOADING
// - upload multipart dell'archivio
// - transizione a READY con files[] e spec.path, oppure ERROR
// - avvio opzionale della pipeline di elaborazione
func (s *TransferService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Input == "" {
		return nil, errors.New("missing required input archive")
	}
	if req.Project == "" {
		return nil, errors.New("project is mandatory")
	}
	if req.ID == "" && req.Name == "" {
		return nil, errors.New("name is required when creating a new survey")
	}

	src, err := upload.OpenFile(req.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	surveyID := req.ID
	if surveyID == "" {
		if surveyID, err = s.create(ctx, req, src); err != nil {
			return nil, err
		}
	}
	log := s.log.With().Str("survey", surveyID).Logger()

	survey, err := s.get(ctx, req.Project, surveyID)
	if err != nil {
		return nil, err
	}
	state := stateOf(survey)
	if state != StateCreated && state != StateError {
		return nil, fmt.Errorf("survey %s is in state %s, expected %s", surveyID, state, StateCreated)
	}

	survey, err = s.updateStatus(ctx, req.Project, survey, map[string]any{
		"status": map[string]any{"state": StateUploading, "message": ""},
	})
	if err != nil {
		return nil, err
	}

	res, err := s.push(ctx, req, surveyID, src)
	if err != nil {
		// non lasciare la survey in UPLOADING anche se il ctx è stato cancellato
		_, serr := s.updateStatus(context.WithoutCancel(ctx), req.Project, survey, map[string]any{
			"status": map[string]any{"state": StateError, "message": err.Error()},
		})
		if serr != nil {
			log.Warn().Err(serr).Msg("failed to record upload error")
		}
		return nil, err
	}

	var ack upload.Ack
	if res.Ack != nil {
		ack = *res.Ack
	}
	location := ack.Location
	if location == "" {
		location = fmt.Sprintf("s3://%s/%s", res.Session.Location.Bucket, res.Session.Location.Key)
	}
	file := map[string]any{
		"path":         src.Name(),
		"name":         src.Name(),
		"content_type": src.ContentType(),
		"size":         res.Size,
	}
	if ack.ETag != "" {
		file["etag"] = ack.ETag
	}

	if _, err := s.updateStatus(ctx, req.Project, survey, map[string]any{
		"spec":   map[string]any{"path": location},
		"status": map[string]any{"state": StateReady, "message": "", "files": []any{file}},
	}); err != nil {
		return nil, err
	}
	log.Info().Str("location", location).Int("parts", res.Parts).Dur("took", res.Took).Msg("survey uploaded")

	result := &UploadResult{
		SurveyID: surveyID,
		Location: location,
		Parts:    res.Parts,
		Files:    []map[string]any{file},
	}

	if req.Process && s.pipeline != nil {
		run, err := s.pipeline.Start(ctx, pipeline.StartRequest{
			Project:    req.Project,
			SurveyID:   surveyID,
			Parameters: req.Parameters,
		})
		if err != nil {
			return result, fmt.Errorf("survey uploaded, processing not started: %w", err)
		}
		result.Run = run
	}
	return result, nil
}

func (s *TransferService) push(ctx context.Context, req UploadRequest, surveyID string, src *upload.FileSource) (*upload.Result, error) {
	meta := make(map[string]string, len(req.Metadata)+2)
	maps.Copy(meta, req.Metadata)
	meta["survey"] = surveyID
	if req.Mission != "" {
		meta["mission"] = req.Mission
	}

	gp := utils.NewProgress(s.out, "Upload", src.Size())
	defer gp.Finish()

	o := s.uploads.NewOrchestrator(req.Project, path.Join(surveysEndpoint, surveyID),
		upload.WithProgress(gp.PartsFunc(s.uploads.Config().PartSize)))
	return o.Start(ctx, src, upload.StartRequest{
		ContentType: src.ContentType(),
		Metadata:    meta,
	})
}

func (s *TransferService) create(ctx context.Context, req UploadRequest, src *upload.FileSource) (string, error) {
	id := utils.UUIDv4NoDash()
	entity := map[string]any{
		"id":      id,
		"project": req.Project,
		"kind":    KindSurvey,
		"name":    req.Name,
		"spec": map[string]any{
			"archive": src.Name(),
			"size":    src.Size(),
		},
		"status": map[string]any{
			"state": StateCreated,
		},
	}
	if req.Mission != "" {
		addRelationship(entity, "survey_of", fmt.Sprintf("mission://%s/%s", req.Project, req.Mission))
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("failed to marshal survey creation payload: %w", err)
	}
	url := s.http.BuildURL(req.Project, surveysEndpoint, "", nil)
	if _, status, err := s.http.Do(ctx, http.MethodPost, url, payload); err != nil {
		return "", fmt.Errorf("failed to create survey (status %d): %w", status, err)
	}
	s.log.Debug().Str("survey", id).Str("name", req.Name).Msg("survey created")
	return id, nil
}

func (s *TransferService) get(ctx context.Context, project, id string) (map[string]any, error) {
	url := s.http.BuildURL(project, surveysEndpoint, id, nil)
	body, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve survey (status %d): %w", status, err)
	}
	var survey map[string]any
	if err := json.Unmarshal(body, &survey); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return survey, nil
}

// updateStatus merges patch into the last known survey and PUTs the whole
// entity back. It returns what the platform stored.
func (s *TransferService) updateStatus(ctx context.Context, project string, survey, patch map[string]any) (map[string]any, error) {
	merged := utils.MergeMaps(survey, patch, statusMerge)
	id := utils.GetStringValue(merged, "id")

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal survey update: %w", err)
	}
	url := s.http.BuildURL(project, surveysEndpoint, id, nil)
	body, status, err := s.http.Do(ctx, http.MethodPut, url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to update survey %s (status %d): %w", id, status, err)
	}

	if len(body) == 0 {
		return merged, nil
	}
	var stored map[string]any
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return stored, nil
}

func stateOf(entity map[string]any) string {
	status, _ := entity["status"].(map[string]any)
	return utils.GetStringValue(status, "state")
}

func addRelationship(entity map[string]any, relType, dest string) {
	meta, ok := entity["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		entity["metadata"] = meta
	}
	rels, _ := meta["relationships"].([]any)
	meta["relationships"] = append(rels, map[string]any{"type": relType, "dest": dest})
}
