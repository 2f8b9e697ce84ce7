package httptransport

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/service"
)

type Handler struct {
	jobs     *service.JobService
	tasks    *service.TaskService
	managers *service.ManagerService
}

func NewHandler(jobs *service.JobService, tasks *service.TaskService, managers *service.ManagerService) *Handler {
	return &Handler{jobs: jobs, tasks: tasks, managers: managers}
}

func actor(r *http.Request) entity.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

type createJobDTO struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"job_type"`
	Settings    json.RawMessage `json:"settings"`
	Project     uuid.UUID       `json:"project"`
	User        uuid.UUID       `json:"user,omitempty"` // owner; defaults to the caller
	Manager     uuid.UUID       `json:"manager"`
	Priority    *int            `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => default 1)
}

// CreateJob godoc
// @Summary Create a job
// @Description Compiles the job into tasks and stores both as queued.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job payload (priority: 0=low,1=normal,2=high)"
// @Success 201 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if !decode(w, r, &dto) {
		return
	}

	priority := 1
	if dto.Priority != nil {
		priority = *dto.Priority
	}

	job, err := h.jobs.CreateJob(r.Context(), actor(r), service.CreateJobRequest{
		Name:        dto.Name,
		Description: dto.Description,
		Type:        dto.Type,
		Settings:    dto.Settings,
		Project:     dto.Project,
		Owner:       dto.User,
		Manager:     dto.Manager,
		Priority:    priority,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob godoc
// @Summary Cancel a job
// @Description Requests cancellation and cancels every unfinished task.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Security BearerAuth
// @Router /jobs/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.jobs.CancelJob(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type jobStatusChangeResp struct {
	From    entity.JobStatus `json:"from"`
	To      entity.JobStatus `json:"to"`
	Changed bool             `json:"changed"`
}

// RecomputeJob godoc
// @Summary Recompute job status
// @Description Re-derives the job status from its tasks. Safe to repeat.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobStatusChangeResp
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /jobs/{id}/recompute [post]
func (h *Handler) RecomputeJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	change, err := h.jobs.RecomputeJob(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusChangeResp{From: change.From, To: change.To, Changed: change.Changed()})
}

// ListTasks godoc
// @Summary List the tasks of a job
// @Tags tasks
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {array} entity.Task
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /jobs/{id}/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tasks, err := h.tasks.ListTasks(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskSpecDTO struct {
	Name     string          `json:"name"`
	Commands json.RawMessage `json:"commands"`
}

// CreateTasks godoc
// @Summary Add tasks to a job
// @Description Tasks are created with their job; existing jobs reject new tasks.
// @Tags tasks
// @Accept json
// @Param id path string true "job id (uuid)"
// @Param request body []taskSpecDTO true "tasks"
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Security BearerAuth
// @Router /jobs/{id}/tasks [post]
func (h *Handler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto []taskSpecDTO
	if !decode(w, r, &dto) {
		return
	}
	specs := make([]entity.TaskSpec, len(dto))
	for i, d := range dto {
		specs[i] = entity.TaskSpec{Name: d.Name, Commands: d.Commands}
	}
	if err := h.tasks.CreateTasks(r.Context(), id, specs, actor(r)); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTask godoc
// @Summary Get task by id
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} entity.Task
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.tasks.GetTask(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type transitionDTO struct {
	Status entity.TaskStatus `json:"status"`
	Log    string            `json:"log,omitempty"`
}

// TransitionTask godoc
// @Summary Change task status
// @Description Moves the task along its lifecycle; the job status follows.
// @Tags tasks
// @Accept json
// @Param id path string true "task id (uuid)"
// @Param request body transitionDTO true "new status"
// @Success 204
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Security BearerAuth
// @Router /tasks/{id}/status [post]
func (h *Handler) TransitionTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto transitionDTO
	if !decode(w, r, &dto) {
		return
	}
	if err := h.tasks.TransitionTask(r.Context(), id, actor(r), dto.Status, dto.Log); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appendLogDTO struct {
	Lines []string `json:"lines"`
}

// AppendTaskLog godoc
// @Summary Append task log lines
// @Tags tasks
// @Accept json
// @Param id path string true "task id (uuid)"
// @Param request body appendLogDTO true "log lines"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /tasks/{id}/logs [post]
func (h *Handler) AppendTaskLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto appendLogDTO
	if !decode(w, r, &dto) {
		return
	}
	if err := h.tasks.AppendTaskLogAs(r.Context(), id, actor(r), dto.Lines); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTaskLogs godoc
// @Summary Read task log lines
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Param after query int false "return lines after this sequence number"
// @Param limit query int false "maximum number of lines"
// @Success 200 {array} entity.TaskLogLine
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /tasks/{id}/logs [get]
func (h *Handler) GetTaskLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	after, err1 := queryInt(r, "after")
	limit, err2 := queryInt(r, "limit")
	if err := errors.Join(err1, err2); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := h.tasks.GetTaskLogs(r.Context(), id, actor(r), int64(after), limit)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, errors.New("invalid " + name)
	}
	return i, nil
}

type registerManagerDTO struct {
	ServiceAccount uuid.UUID `json:"service_account"`
	Name           string    `json:"name"`
	URL            string    `json:"url,omitempty"`
}

// RegisterManager godoc
// @Summary Register a manager
// @Description Creates a manager owned by the caller.
// @Tags managers
// @Accept json
// @Produce json
// @Param request body registerManagerDTO true "manager credentials"
// @Success 201 {object} entity.Manager
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Security BearerAuth
// @Router /managers [post]
func (h *Handler) RegisterManager(w http.ResponseWriter, r *http.Request) {
	var dto registerManagerDTO
	if !decode(w, r, &dto) {
		return
	}
	m, err := h.managers.Register(r.Context(), actor(r).UserID, entity.Credentials{
		ServiceAccount: dto.ServiceAccount,
		Name:           dto.Name,
		URL:            dto.URL,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetManager godoc
// @Summary Get manager by id
// @Tags managers
// @Produce json
// @Param id path string true "manager id (uuid)"
// @Success 200 {object} entity.Manager
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /managers/{id} [get]
func (h *Handler) GetManager(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.managers.GetManager(r.Context(), id, actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// AssignProject godoc
// @Summary Assign a manager to a project
// @Description Needs the caller to own the manager and belong to the project.
// @Tags managers
// @Param id path string true "manager id (uuid)"
// @Param project path string true "project id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /managers/{id}/projects/{project} [put]
func (h *Handler) AssignProject(w http.ResponseWriter, r *http.Request) {
	managerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	if err := h.managers.AssignToProject(r.Context(), managerID, projectID, actor(r)); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveProject godoc
// @Summary Remove a manager from a project
// @Tags managers
// @Param id path string true "manager id (uuid)"
// @Param project path string true "project id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /managers/{id}/projects/{project} [delete]
func (h *Handler) RemoveProject(w http.ResponseWriter, r *http.Request) {
	managerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project")
	if !ok {
		return
	}
	if err := h.managers.RemoveFromProject(r.Context(), managerID, projectID, actor(r)); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Whoami godoc
// @Summary Get the manager the caller authenticates as
// @Tags managers
// @Produce json
// @Success 200 {object} entity.Manager
// @Failure 404 {object} apiError
// @Security BearerAuth
// @Router /manager [get]
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	m, err := h.managers.ManagerFor(r.Context(), actor(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ClaimTask godoc
// @Summary Claim the next queued task
// @Description Hands the calling manager the next task of its projects, by job priority.
// @Tags managers
// @Produce json
// @Success 200 {object} entity.Task
// @Success 204 "no task available"
// @Failure 403 {object} apiError
// @Security BearerAuth
// @Router /manager/claim [post]
func (h *Handler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.ClaimTask(r.Context(), actor(r))
	var re *service.RecomputeError
	switch {
	case err != nil && task != nil && errors.As(err, &re):
		// The claim is committed; the job status catches up on the next recompute.
		log.Printf("[http] task_id=%s claimed, %v", task.ID, err)
	case err != nil:
		writeServiceErr(w, r, err)
		return
	}
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
