package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/table"
	"github.com/existflow/cowork/internal/table/httptable"
	"github.com/existflow/cowork/internal/table/sqltable"
	"github.com/labstack/echo/v4"
)

type addSheetRequest struct {
	Title  string   `json:"title"`
	Header []string `json:"header"`
}

type headerRequest struct {
	Header []string `json:"header"`
}

type valuesRequest struct {
	Values []string `json:"values"`
}

// handleGetSheet returns the header and every data row
func (s *Server) handleGetSheet(c echo.Context) error {
	sheet, err := s.sheet(c)
	if err != nil {
		return s.tableError(c, err)
	}
	ctx := c.Request().Context()

	header, err := sheet.Header(ctx)
	if err != nil {
		return s.tableError(c, err)
	}
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return s.tableError(c, err)
	}

	return c.JSON(http.StatusOK, httptable.SheetData{Header: header, Rows: rows})
}

// handleAddSheet creates a sheet with its header row
func (s *Server) handleAddSheet(c echo.Context) error {
	var req addSheetRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid request")
	}
	if req.Title == "" {
		return jsonError(c, http.StatusBadRequest, "", "title required")
	}

	wb, err := s.workbook(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid workbook name")
	}
	if _, err := wb.AddSheet(c.Request().Context(), req.Title, req.Header); err != nil {
		return s.tableError(c, err)
	}

	logger.Info("Sheet created", logger.F("workbook", c.Param("wb")), logger.F("sheet", req.Title))
	return c.JSON(http.StatusCreated, map[string]string{"title": req.Title})
}

// handleResetSheet clears every row and writes a new header
func (s *Server) handleResetSheet(c echo.Context) error {
	var req headerRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid request")
	}
	sheet, err := s.sheet(c)
	if err != nil {
		return s.tableError(c, err)
	}
	if err := sheet.Reset(c.Request().Context(), req.Header); err != nil {
		return s.tableError(c, err)
	}

	logger.Warn("Sheet reset", logger.F("workbook", c.Param("wb")), logger.F("sheet", sheet.Title()))
	return c.NoContent(http.StatusNoContent)
}

// handleAppendRow adds a row after the last one
func (s *Server) handleAppendRow(c echo.Context) error {
	var req valuesRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid request")
	}
	sheet, err := s.sheet(c)
	if err != nil {
		return s.tableError(c, err)
	}
	if err := sheet.AppendRow(c.Request().Context(), req.Values); err != nil {
		return s.tableError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

// handleUpdateRow overwrites the row at a 0-based index
func (s *Server) handleUpdateRow(c echo.Context) error {
	var req valuesRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid request")
	}
	index, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid row index")
	}
	sheet, err := s.sheet(c)
	if err != nil {
		return s.tableError(c, err)
	}
	if err := sheet.UpdateRow(c.Request().Context(), index, req.Values); err != nil {
		return s.tableError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleDeleteRow removes the row at a 0-based index
func (s *Server) handleDeleteRow(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "", "invalid row index")
	}
	sheet, err := s.sheet(c)
	if err != nil {
		return s.tableError(c, err)
	}
	if err := sheet.DeleteRow(c.Request().Context(), index); err != nil {
		return s.tableError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) workbook(c echo.Context) (table.Workbook, error) {
	name, err := url.PathUnescape(c.Param("wb"))
	if err != nil {
		return nil, err
	}
	return s.db.Workbook(name), nil
}

func (s *Server) sheet(c echo.Context) (table.Sheet, error) {
	wb, err := s.workbook(c)
	if err != nil {
		return nil, err
	}
	title, err := url.PathUnescape(c.Param("sheet"))
	if err != nil {
		return nil, err
	}
	return wb.Sheet(c.Request().Context(), title)
}

// tableError maps storage errors onto status codes the client understands
func (s *Server) tableError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, table.ErrSheetNotFound):
		return jsonError(c, http.StatusNotFound, httptable.CodeSheetNotFound, err.Error())
	case errors.Is(err, table.ErrRowOutOfRange):
		return jsonError(c, http.StatusNotFound, httptable.CodeRowOutOfRange, err.Error())
	case errors.Is(err, sqltable.ErrSheetExists):
		return jsonError(c, http.StatusConflict, httptable.CodeSheetExists, err.Error())
	}

	var escErr url.EscapeError
	if errors.As(err, &escErr) {
		return jsonError(c, http.StatusBadRequest, "", "invalid path")
	}

	logger.Error("Table operation failed",
		logger.F("method", c.Request().Method),
		logger.F("uri", c.Request().RequestURI),
		logger.F("error", err))
	return jsonError(c, http.StatusInternalServerError, "", "internal error")
}
