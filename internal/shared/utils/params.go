package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/shared/errors"
)

// ParseUintParam parses a positive integer path parameter.
func ParseUintParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, errors.NewBadRequestError("invalid " + name + " parameter")
	}
	return uint(v), nil
}
