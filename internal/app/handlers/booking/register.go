package booking

import (
	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
)

// RegisterCommands wires the coordinator's command handlers onto bus.
func RegisterCommands(bus *commands.InMemoryBus, c *Coordinator) {
	commands.RegisterHandler[CreateBookingCommand, *dto.Booking](bus, CreateBookingKey, &CreateBookingHandler{Coordinator: c})
	commands.RegisterHandler[UpdateBookingDatesCommand, *dto.Booking](bus, UpdateBookingDatesKey, &UpdateBookingDatesHandler{Coordinator: c})
	commands.RegisterHandler[ApplyTransitionCommand, *dto.Booking](bus, ApplyTransitionKey, &ApplyTransitionHandler{Coordinator: c})
	commands.RegisterHandler[RepriceListingBookingsCommand, *RepriceListingBookingsResult](bus, RepriceListingBookingsKey, &RepriceListingBookingsHandler{Coordinator: c})
}
