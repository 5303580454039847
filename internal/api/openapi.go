package api

import (
	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/pkg/openapi"
)

// NewSpec describes every route registered by the API module.
func NewSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(schemas())

	page := []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search query", false),
		openapi.QueryParam("sort", "string", "Sort fields, - prefix for descending", false),
	}
	hash := openapi.PathParam("hash", "", "SHA-256 fingerprint of the normalized text")
	taskID := openapi.PathParam("id", "uuid", "Task id")

	spec.Paths["/submissions"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Submit source text",
			Description: "Fingerprints the text, reuses stored results for the current criterion versions, and dispatches a job for each remaining active criterion.",
			Tags:        []string{"Submissions"},
			RequestBody: openapi.RequestBodyJSON("SubmissionRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Every assignment was reused", "SubmissionHandle"),
				202: openapi.ResponseJSON("At least one assignment is pending", "SubmissionHandle"),
				400: openapi.ResponseRef("BadRequest"),
				413: openapi.ResponseRef("PayloadTooLarge"),
				503: openapi.ResponseRef("ServiceUnavailable"),
			},
		},
	}

	spec.Paths["/jobs/queue"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Queue depth and live workers",
			Tags:    []string{"Jobs"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Queue info", "QueueInfo"),
				503: openapi.ResponseRef("ServiceUnavailable"),
			},
		},
	}
	spec.Paths["/jobs/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Job status",
			Tags:       []string{"Jobs"},
			Parameters: []*openapi.Parameter{taskID},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Job", "Job"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/jobs/{id}/wait"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Wait for a job to finish",
			Tags:    []string{"Jobs"},
			Parameters: []*openapi.Parameter{
				taskID,
				openapi.QueryParam("timeout", "string", "Go duration, capped by queue.max_wait", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Terminal job", "Job"),
				202: openapi.ResponseJSON("Timed out, latest state", "Job"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/sources"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List sources",
			Tags:    []string{"Sources"},
			Parameters: append(page,
				openapi.QueryParam("url", "string", "Source URL contains", false),
				openapi.QueryParam("from", "string", "Source date lower bound (RFC 3339)", false),
				openapi.QueryParam("to", "string", "Source date upper bound (RFC 3339)", false),
				openapi.QueryParam("force_recheck", "boolean", "Force recheck flag", false),
			),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Page of sources", pageOf("Source")),
			},
		},
	}
	spec.Paths["/sources/{hash}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find a source",
			Tags:       []string{"Sources"},
			Parameters: []*openapi.Parameter{hash},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Source", "Source"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/sources/{hash}/text"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Archived normalized text of a source",
			Tags:       []string{"Sources"},
			Parameters: []*openapi.Parameter{hash},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Source text", "SourceText"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/sources/{hash}/analyses"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Stored analyses of a source",
			Tags:    []string{"Analyses"},
			Parameters: append([]*openapi.Parameter{hash}, append(page,
				openapi.QueryParam("criterion_id", "string", "Criterion id", false),
				openapi.QueryParam("status", "string", "finished or failed", false),
				openapi.QueryParam("is_match", "boolean", "Match flag", false),
			)...),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Page of analyses", pageOf("Analysis")),
			},
		},
	}
	spec.Paths["/analyses/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find an analysis",
			Tags:       []string{"Analyses"},
			Parameters: []*openapi.Parameter{taskID},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Analysis", "Analysis"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/criteria"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "List criteria",
			Tags:       []string{"Criteria"},
			Parameters: append(page, openapi.QueryParam("active", "boolean", "Active flag", false)),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Page of criteria", pageOf("Criterion")),
			},
		},
	}
	spec.Paths["/criteria/active"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Active criteria snapshot",
			Tags:    []string{"Criteria"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Active criteria ordered by id", openapi.ArrayOf("Criterion")),
				503: openapi.ResponseRef("ServiceUnavailable"),
			},
		},
	}
	spec.Paths["/criteria/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find a criterion",
			Tags:       []string{"Criteria"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "", "Criterion id")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Criterion", "Criterion"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/events/stats"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Per-criterion statistics",
			Tags:       []string{"Events"},
			Parameters: []*openapi.Parameter{openapi.QueryParam("days", "integer", "Window in days (default 30)", false)},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Statistics", openapi.ArrayOf("CriterionStats")),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}
	spec.Paths["/events/daily"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Per-day statistics",
			Tags:       []string{"Events"},
			Parameters: []*openapi.Parameter{openapi.QueryParam("days", "integer", "Window in days (default 7)", false)},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Statistics, newest day first", openapi.ArrayOf("DailyStats")),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}
	spec.Paths["/events/recent"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Most recent events",
			Tags:       []string{"Events"},
			Parameters: []*openapi.Parameter{openapi.QueryParam("limit", "integer", "Maximum events (default 50)", false)},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Events", openapi.ArrayOf("Event")),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}
	spec.Paths["/events/sources/{hash}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Events for a source",
			Tags:       []string{"Events"},
			Parameters: []*openapi.Parameter{hash},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseSchema("Events", openapi.ArrayOf("Event")),
			},
		},
	}

	spec.Paths["/health"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Component health",
			Tags:    []string{"Health"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("All components up", "HealthReport"),
				503: openapi.ResponseJSON("At least one component down", "HealthReport"),
			},
		},
	}

	return spec
}

func pageOf(schemaName string) *openapi.Schema {
	return &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        openapi.ArrayOf(schemaName),
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	}
}

func schemas() map[string]*openapi.Schema {
	str := func(desc string) *openapi.Schema { return &openapi.Schema{Type: "string", Description: desc} }
	ts := &openapi.Schema{Type: "string", Format: "date-time"}
	integer := &openapi.Schema{Type: "integer"}
	unit := &openapi.Schema{Type: "number", Minimum: openapi.Bounds(0), Maximum: openapi.Bounds(1)}
	status := &openapi.Schema{Type: "string", Enum: []any{"queued", "running", "finished", "failed"}}

	return map[string]*openapi.Schema{
		"SubmissionRequest": {
			Type:        "object",
			Description: "text is required unless source_url is given",
			Properties: map[string]*openapi.Schema{
				"text":          str("Source text"),
				"source_url":    {Type: "string", Format: "uri"},
				"source_date":   ts,
				"force_recheck": {Type: "boolean", Default: false},
			},
		},
		"Assignment": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"criterion_id":      str(""),
				"criterion_version": integer,
				"task_id":           {Type: "string", Format: "uuid"},
				"status":            status,
				"reused":            {Type: "boolean"},
				"result":            openapi.SchemaRef("Verdict"),
				"error":             openapi.SchemaRef("Failure"),
			},
		},
		"SubmissionHandle": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"source_hash":   str("SHA-256 of the normalized text"),
				"created":       {Type: "boolean"},
				"force_recheck": {Type: "boolean"},
				"assignments":   openapi.ArrayOf("Assignment"),
			},
		},
		"Verdict": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"is_match":   {Type: "boolean"},
				"confidence": unit,
				"summary":    str(""),
				"model_name": str(""),
				"latency_ms": integer,
			},
			Required: []string{"is_match", "confidence"},
		},
		"Failure": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"reason": {Type: "string", Enum: []any{
					"transport", "rejected", "parse", "persistence",
					"panic", "source_unavailable", "worker_lost", "expired",
				}},
				"message":    str(""),
				"raw_output": str("Model output that failed to parse"),
				"verdict":    openapi.SchemaRef("Verdict"),
			},
			Required: []string{"reason", "message"},
		},
		"Job": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"task_id":           {Type: "string", Format: "uuid"},
				"source_hash":       str(""),
				"criterion_id":      str(""),
				"criterion_version": integer,
				"criterion_text":    str(""),
				"threshold":         unit,
				"status":            status,
				"enqueued_at":       ts,
				"started_at":        ts,
				"ended_at":          ts,
				"attempts":          integer,
				"result":            openapi.SchemaRef("Verdict"),
				"error":             openapi.SchemaRef("Failure"),
			},
		},
		"QueueInfo": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"queued":  integer,
				"running": integer,
				"workers": integer,
			},
		},
		"SourceText": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"source_hash": str(""),
				"text":        str("Normalized text as archived"),
			},
		},
		"Source": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            {Type: "string", Format: "uuid"},
				"source_hash":   str(""),
				"source_url":    str(""),
				"source_date":   ts,
				"ingest_ts":     ts,
				"force_recheck": {Type: "boolean"},
				"text_preview":  str("First KiB of the normalized text"),
				"created_at":    ts,
				"updated_at":    ts,
			},
		},
		"Criterion": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":             str(""),
				"criterion_text": str(""),
				"version":        integer,
				"is_active":      {Type: "boolean"},
				"threshold":      unit,
				"created_at":     ts,
				"updated_at":     ts,
			},
		},
		"Analysis": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"task_id":               {Type: "string", Format: "uuid"},
				"source_hash":           str(""),
				"criterion_id":          str(""),
				"criterion_version":     integer,
				"criterion_text":        str(""),
				"threshold":             unit,
				"status":                status,
				"is_match":              {Type: "boolean"},
				"confidence":            unit,
				"summary":               str(""),
				"model_name":            str(""),
				"latency_ms":            integer,
				"failure_reason":        str(""),
				"failure_message":       str(""),
				"raw_output":            str(""),
				"attempts":              integer,
				"enqueued_at":           ts,
				"started_at":            ts,
				"completed_at":          ts,
				"event_state":           {Type: "string", Enum: []any{"pending", "recorded", "failed"}, Description: "Absent for failed analyses"},
				"event_attempts":        integer,
				"event_next_attempt_at": ts,
				"event_error":           str(""),
			},
		},
		"Event": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"event_id":          {Type: "string", Format: "uuid"},
				"source_hash":       str(""),
				"source_url":        str(""),
				"source_date":       ts,
				"ingest_ts":         ts,
				"criterion_id":      str(""),
				"criterion_version": integer,
				"criterion_text":    str(""),
				"is_match":          {Type: "integer", Enum: []any{0, 1}},
				"confidence":        unit,
				"summary":           str(""),
				"model_name":        str(""),
				"latency_ms":        integer,
				"created_at":        ts,
			},
		},
		"CriterionStats": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"criterion_id":   str(""),
				"criterion_text": str(""),
				"total":          integer,
				"matches":        integer,
				"match_rate":     unit,
				"avg_confidence": unit,
				"avg_latency_ms": {Type: "number"},
			},
		},
		"DailyStats": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"day":            {Type: "string", Format: "date"},
				"total":          integer,
				"matches":        integer,
				"match_rate":     unit,
				"avg_confidence": unit,
				"avg_latency_ms": {Type: "number"},
			},
		},
		"HealthReport": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"status": {Type: "string", Enum: []any{"healthy", "degraded"}},
				"components": {Type: "array", Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"name":       str(""),
						"status":     {Type: "string", Enum: []any{"up", "down"}},
						"latency_ms": integer,
						"error":      str(""),
					},
				}},
				"checked_at": ts,
			},
		},
	}
}
