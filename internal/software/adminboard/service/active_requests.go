package service

import (
	"context"
	"strconv"

	"bus-boarding/internal/ports"
)

const maxPageSize = 100

// ActiveRequests returns a paginated list of requests waiting for confirmation.
// Unparsable or non-positive paging falls back to page 1 of 10.
func (service *adminService) ActiveRequests(ctx context.Context, page, pageSize string) (ports.ActiveRequestsResult, error) {
	pageInt, err := strconv.Atoi(page)
	if err != nil || pageInt < 1 {
		pageInt = 1
	}
	sizeInt, err := strconv.Atoi(pageSize)
	if err != nil || sizeInt < 1 {
		sizeInt = 10
	}
	sizeInt = min(sizeInt, maxPageSize)

	res := ports.ActiveRequestsResult{Page: pageInt, PageSize: sizeInt, Requests: []ports.RequestView{}}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		nActive, err := service.stats.CountActiveRequests(txCtx)
		if err != nil {
			return err
		}
		res.TotalCount = nActive

		offset := (pageInt - 1) * sizeInt
		rows, err := service.stats.ListActiveRequests(txCtx, offset, sizeInt)
		if err != nil {
			return err
		}
		for i := range rows {
			res.Requests = append(res.Requests, ports.NewRequestView(&rows[i]))
		}
		return nil
	})
	if err != nil {
		return ports.ActiveRequestsResult{}, err
	}

	return res, nil
}
