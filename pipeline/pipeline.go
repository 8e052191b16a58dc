// Package pipeline runs authentication flows as ordered lists of steps. Each step
// either lets the flow continue or terminates it with a complete response.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
)

// Response is the terminal outcome of a pipeline: an HTTP status and the envelope body
type Response struct {
	Status int
	Body   entity.APIResponse
}

// OK builds a 200 response
func OK(message string, data interface{}) Response {
	return Response{Status: http.StatusOK, Body: entity.Success(message, data)}
}

// Fail builds an error response with the given status
func Fail(status int, message string) Response {
	return Response{Status: status, Body: entity.Failure(message, nil)}
}

// ServerError is the generic response for failures that are not the caller's fault
func ServerError() Response {
	return Fail(http.StatusInternalServerError, "Internal server error")
}

// Result is what a step hands back: continue, or terminate with a response
type Result struct {
	terminate bool
	response  Response
}

// Continue passes control to the next step
func Continue() Result {
	return Result{}
}

// Terminate stops the pipeline with resp; later steps do not run
func Terminate(resp Response) Result {
	return Result{terminate: true, response: resp}
}

// Terminated reports whether the step stopped the pipeline
func (r Result) Terminated() bool {
	return r.terminate
}

// Response returns the terminal response; zero unless Terminated
func (r Result) Response() Response {
	return r.response
}

// Step is one unit of a pipeline. Handle may read and extend state. Shaping a
// caller-facing failure is done with Terminate; a returned error is treated as a
// server failure.
type Step interface {
	Name() string
	Handle(ctx context.Context, state *State) (Result, error)
}

// Pipeline runs its steps strictly in declaration order
type Pipeline struct {
	name   string
	steps  []Step
	logger *logger.Logger
}

// New builds a pipeline from an explicit step list
func New(name string, logger *logger.Logger, steps ...Step) *Pipeline {
	return &Pipeline{
		name:   name,
		steps:  steps,
		logger: logger,
	}
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Steps returns the declared step names in execution order
func (p *Pipeline) Steps() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}

// Execute runs every step against state and, when none terminates, returns then(state).
// Step errors and panics are logged and become a generic 500; earlier side effects
// are not undone.
func (p *Pipeline) Execute(ctx context.Context, state *State, then func(*State) Response) (resp Response) {
	start := time.Now()
	current := "terminal"

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("Pipeline step panicked",
				"pipeline", p.name,
				"step", current,
				"panic", fmt.Sprint(r))
			resp = ServerError()
		}
	}()

	for _, step := range p.steps {
		current = step.Name()

		result, err := step.Handle(ctx, state)
		if err != nil {
			p.logger.Errorw("Pipeline step failed",
				"pipeline", p.name,
				"step", current,
				"error", err)
			return ServerError()
		}

		if result.Terminated() {
			p.logger.Infow("Pipeline terminated",
				"pipeline", p.name,
				"step", current,
				"status", result.Response().Status,
				"duration", time.Since(start))
			return result.Response()
		}
	}

	current = "terminal"
	resp = then(state)

	p.logger.Debugw("Pipeline completed",
		"pipeline", p.name,
		"status", resp.Status,
		"duration", time.Since(start))

	return resp
}
