package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/fareharvest/pkg/ctdf"
	"github.com/travigo/fareharvest/pkg/database"
)

func FaresRouter(router fiber.Router, store database.FareStore) {
	router.Get("/", listFares(store))
	router.Get("/:identifier", getFare(store))
}

func listFares(store database.FareStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := fareFilterFromQuery(c)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err)
		}

		fares, err := store.QueryFares(c.UserContext(), filter)
		if err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}

		faresReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, fares)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Fares",
			})
		}

		return c.JSON(faresReduced)
	}
}

func getFare(store database.FareStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fare, err := store.GetFare(c.UserContext(), c.Params("identifier"))
		if errors.Is(err, ctdf.ErrNotFound) {
			return sendError(c, fiber.StatusNotFound, err)
		} else if err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}

		fareReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, fare)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Fare",
			})
		}

		return c.JSON(fareReduced)
	}
}
