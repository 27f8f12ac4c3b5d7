package service

import (
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/ports"
)

// adminService encapsulates the operations board logic and dependencies.
type adminService struct {
	uow   ports.UnitOfWork
	stats ports.StatsRepository
	clock clock.Clock
}

// NewAdminService creates a new instance of the AdminService with the provided dependencies.
func NewAdminService(uow ports.UnitOfWork, stats ports.StatsRepository, clk clock.Clock) ports.AdminService {
	return &adminService{
		uow:   uow,
		stats: stats,
		clock: clk,
	}
}
