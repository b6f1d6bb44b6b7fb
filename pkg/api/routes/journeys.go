package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/fareharvest/pkg/ctdf"
	"github.com/travigo/fareharvest/pkg/database"
)

func JourneysRouter(router fiber.Router, store database.FareStore) {
	router.Get("/", listJourneys(store))
	router.Get("/:identifier", getJourney(store))
}

func listJourneys(store database.FareStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := journeyFilterFromQuery(c)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err)
		}

		journeys, err := store.QueryJourneys(c.UserContext(), filter)
		if err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}

		for _, journey := range journeys {
			journey.SortFares()
		}

		journeysReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, journeys)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Journeys",
			})
		}

		return c.JSON(journeysReduced)
	}
}

func getJourney(store database.FareStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		journey, err := store.GetJourney(c.UserContext(), c.Params("identifier"))
		if errors.Is(err, ctdf.ErrNotFound) {
			return sendError(c, fiber.StatusNotFound, err)
		} else if err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}

		journey.SortFares()

		journeyReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, journey)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Journey",
			})
		}

		return c.JSON(journeyReduced)
	}
}
