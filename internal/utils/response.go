package utils

import (
	"errors"

	apperr "finagold/internal/errors"
	"finagold/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a JSON response with status 201.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message})
}

// NotFound sends a JSON error response with status 404.
func NotFound(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusNotFound, fiber.Map{"error": message})
}

// Conflict sends a JSON error response with status 409.
func Conflict(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusConflict, fiber.Map{"error": message})
}

// UnprocessableEntity sends a JSON error response with status 422.
func UnprocessableEntity(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnprocessableEntity, fiber.Map{"error": message})
}

// InternalError sends a JSON error response with status 500.
func InternalError(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusInternalServerError, fiber.Map{"error": message})
}

// DomainError maps a service error onto the HTTP status it deserves.
func DomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidEntry):
		return BadRequest(c, err.Error())
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return UnprocessableEntity(c, err.Error())
	case errors.Is(err, apperr.ErrPlanNotEligible):
		return UnprocessableEntity(c, err.Error())
	case errors.Is(err, apperr.ErrConcurrentModification):
		return Conflict(c, err.Error())
	case errors.Is(err, repositories.ErrEntryNotFound),
		errors.Is(err, repositories.ErrPlanNotFound),
		errors.Is(err, repositories.ErrInstanceNotFound),
		errors.Is(err, repositories.ErrReportNotFound):
		return NotFound(c, err.Error())
	default:
		return InternalError(c, err.Error())
	}
}
