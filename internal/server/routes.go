package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/alarm"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/medication"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// LAN only API, the companion app is served from another origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errUnexpectedResponse = errors.New("unexpected actor response")

type addressRequest struct {
	Address string `json:"address"`
}

type commandResponse struct {
	Command string              `json:"command"`
	Success bool                `json:"success"`
	State   pillbox.DeviceState `json:"state"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type alarmView struct {
	alarm.Alarm
	NextOccurrence *time.Time `json:"next_occurrence,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/device", s.GetDeviceHandler)
	api.PUT("/device/address", s.SetAddressHandler)
	api.POST("/device/probe", s.ProbeHandler)
	api.POST("/device/commands/:command", s.CommandHandler)
	api.POST("/device/dispense/:slot", s.DispenseHandler)
	api.GET("/device/status", s.QueryStatusHandler)
	api.GET("/device/discover", s.DiscoverHandler)

	api.GET("/alarms", s.ListAlarmsHandler)
	api.POST("/alarms", s.AddAlarmHandler)
	api.DELETE("/alarms", s.ClearAlarmsHandler)
	api.PUT("/alarms/:id", s.UpdateAlarmHandler)
	api.DELETE("/alarms/:id", s.DeleteAlarmHandler)

	api.GET("/medications", s.ListMedicationsHandler)
	api.POST("/medications", s.AddMedicationHandler)
	api.GET("/medications/:id", s.GetMedicationHandler)
	api.PUT("/medications/:id", s.UpdateMedicationHandler)
	api.DELETE("/medications/:id", s.DeleteMedicationHandler)

	e.GET("/ws", s.WebsocketHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ask sends a request to the master actor and checks the actor level error.
func ask[T domain.ActorResponse](s *Server, msg domain.DeviceRequest) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, msg, s.requestTimeout).Result()
	if err != nil {
		return zero, echo.NewHTTPError(http.StatusServiceUnavailable, "device actor unavailable")
	}
	resp, ok := res.(T)
	if !ok {
		return zero, echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	if resp.HasResponseError() {
		return resp, deviceError(resp.GetResponseError())
	}
	return resp, nil
}

func deviceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDeviceNotConnected):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

func (s *Server) GetDeviceHandler(c echo.Context) error {
	resp, err := ask[domain.DeviceStateResponse](s, domain.DeviceStateRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.State)
}

func (s *Server) SetAddressHandler(c echo.Context) error {
	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Address) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidAddress.Error())
	}
	resp, err := ask[domain.SetDeviceAddressResponse](s, domain.SetDeviceAddressRequest{Address: req.Address})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.State)
}

func (s *Server) ProbeHandler(c echo.Context) error {
	resp, err := ask[domain.DeviceProbeResponse](s, domain.DeviceProbeRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.State)
}

func (s *Server) CommandHandler(c echo.Context) error {
	cmd, err := pillbox.ParseCommand(c.Param("command"), 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// dispense and status have their own routes
	if cmd.Kind == pillbox.CommandDispense || cmd.Kind == pillbox.CommandQueryStatus {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported command "+c.Param("command"))
	}
	return s.runCommand(c, cmd)
}

func (s *Server) DispenseHandler(c echo.Context) error {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "slot must be an integer")
	}
	return s.runCommand(c, pillbox.Dispense(slot))
}

func (s *Server) runCommand(c echo.Context, cmd pillbox.Command) error {
	resp, err := ask[domain.DeviceCommandResponse](s, domain.DeviceCommandRequest{Command: cmd})
	if err != nil {
		return err
	}
	body := commandResponse{
		Command: cmd.String(),
		Success: resp.Success,
		State:   resp.State,
	}
	if !resp.Success {
		return c.JSON(http.StatusBadGateway, body)
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) QueryStatusHandler(c echo.Context) error {
	resp, err := ask[domain.DeviceQueryStatusResponse](s, domain.DeviceQueryStatusRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: resp.Status})
}

func (s *Server) DiscoverHandler(c echo.Context) error {
	if s.browser == nil {
		return echo.NewHTTPError(http.StatusNotFound, "discovery disabled")
	}
	candidates, err := s.browser.Browse(c.Request().Context())
	if err != nil {
		s.logger.Error("http: discovery failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "discovery failed")
	}
	return c.JSON(http.StatusOK, candidates)
}

func (s *Server) ListAlarmsHandler(c echo.Context) error {
	alarms, err := s.alarms.Load()
	if err != nil {
		return err
	}
	now := time.Now()
	views := make([]alarmView, 0, len(alarms))
	for _, a := range alarms {
		view := alarmView{Alarm: a}
		if next, ok := alarm.NextOccurrence(a, now, s.location); ok {
			view.NextOccurrence = &next
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) AddAlarmHandler(c echo.Context) error {
	var a alarm.Alarm
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	added, err := s.alarms.Add(a)
	if err != nil {
		return alarmError(err)
	}
	return c.JSON(http.StatusCreated, added)
}

func (s *Server) UpdateAlarmHandler(c echo.Context) error {
	var a alarm.Alarm
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	updated, err := s.alarms.Update(c.Param("id"), a)
	if err != nil {
		return alarmError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteAlarmHandler(c echo.Context) error {
	if err := s.alarms.Delete(c.Param("id")); err != nil {
		return alarmError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ClearAlarmsHandler(c echo.Context) error {
	if err := s.alarms.Clear(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func alarmError(err error) error {
	switch {
	case errors.Is(err, alarm.ErrInvalidAlarm):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, alarm.ErrAlarmNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}

func (s *Server) ListMedicationsHandler(c echo.Context) error {
	meds, err := s.medications.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meds)
}

func (s *Server) GetMedicationHandler(c echo.Context) error {
	med, err := s.medications.Get(c.Param("id"))
	if err != nil {
		return medicationError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (s *Server) AddMedicationHandler(c echo.Context) error {
	var m medication.Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	added, err := s.medications.Add(m)
	if err != nil {
		return medicationError(err)
	}
	return c.JSON(http.StatusCreated, added)
}

func (s *Server) UpdateMedicationHandler(c echo.Context) error {
	var m medication.Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	updated, err := s.medications.Update(c.Param("id"), m)
	if err != nil {
		return medicationError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteMedicationHandler(c echo.Context) error {
	if err := s.medications.Delete(c.Param("id")); err != nil {
		return medicationError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func medicationError(err error) error {
	switch {
	case errors.Is(err, medication.ErrInvalidMedication):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, medication.ErrMedicationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}

// WebsocketHandler streams state snapshots, starting with the current one.
func (s *Server) WebsocketHandler(c echo.Context) error {
	var first []byte
	if resp, err := ask[domain.DeviceStateResponse](s, domain.DeviceStateRequest{}); err == nil {
		first, _ = json.Marshal(domain.DeviceStateUpdateEvent{State: resp.State, Reason: "snapshot"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("http: websocket upgrade failed", zap.Error(err))
		return nil
	}
	client := s.hub.attach(conn, first)
	go client.writePump()
	client.readPump()
	return nil
}
