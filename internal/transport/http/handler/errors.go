package handler

const (
	errInternalServer = "Internal server error"
	errTaskNotFound   = "Task not found"
	errWorkerNotFound = "Worker not found"
	errInvalidStatus  = "Invalid status"
)
