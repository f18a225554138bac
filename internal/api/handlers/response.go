// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/flowdeck/flowdeck/internal/models"
)

func init() {
	// Report validation failures by JSON field name, not Go field name
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// FieldError is one per-field validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data interface{}, pagination models.Pagination) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": pagination})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func respondErrorDetails(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, gin.H{"success": false, "error": message, "details": details})
}

// respondInternalError surfaces a generic 500; detail stays server-side
func respondInternalError(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, "internal server error")
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String {
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return "is invalid"
	}
}

// bindJSON binds and validates the request body against obj's schema.
// On failure it writes a 400 with per-field details and returns false.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			details := make([]FieldError, 0, len(validationErrs))
			for _, fe := range validationErrs {
				details = append(details, FieldError{
					Field:   fe.Field(),
					Message: fieldErrorMessage(fe),
				})
			}
			respondErrorDetails(c, http.StatusBadRequest, "validation failed", details)
			return false
		}
		respondError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses the numeric id path parameter. On failure it writes a
// 400 and returns false.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid id: %q", c.Param("id")))
		return 0, false
	}
	return id, true
}
