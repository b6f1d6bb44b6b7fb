package routes

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/fareharvest/pkg/database"
)

const dateParameterLayout = "2006-01-02"

func journeyFilterFromQuery(c *fiber.Ctx) (database.JourneyFilter, error) {
	filter := database.JourneyFilter{
		OriginCode:      c.Query("src"),
		DestinationCode: c.Query("dest"),
	}

	if value := c.Query("changes"); value != "" {
		changes, err := strconv.Atoi(value)
		if err != nil || changes < 0 {
			return filter, fmt.Errorf("changes must be a non-negative integer")
		}
		filter.Changes = &changes
	}

	if value := c.Query("date"); value != "" {
		date, err := time.ParseInLocation(dateParameterLayout, value, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("date must be formatted as YYYY-MM-DD")
		}
		filter.Date = date
	}

	if value := c.Query("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func fareFilterFromQuery(c *fiber.Ctx) (database.FareFilter, error) {
	journeyFilter, err := journeyFilterFromQuery(c)
	if err != nil {
		return database.FareFilter{}, err
	}

	return database.FareFilter{
		JourneyFilter: journeyFilter,
		JourneyID:     c.Query("jid"),
		Type:          c.Query("type"),
		Flexibility:   c.Query("flex"),
		Permission:    c.Query("perm"),
		CarrierCode:   c.Query("com"),
	}, nil
}

func sendError(c *fiber.Ctx, status int, err error) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}
