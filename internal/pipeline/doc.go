// Package pipeline renders the sales kanban board and reconciles drag and
// drop against the store. Column membership is the only persisted fact about
// a lead's position; in-column ordering lives and dies with the view.
package pipeline
