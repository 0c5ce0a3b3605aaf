package rfid

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
)

var (
	NowFunc = time.Now // mockable

	// replies
	ReplyDeviceNotFound = Reply{Status: http.StatusUnauthorized, Text: "Device not found or token is invalid."}
	ReplyAvailable      = Reply{Status: http.StatusOK, Text: "Available"}
	ReplySuccessful     = Reply{Status: http.StatusOK, Text: "Successful"}
	ReplyNotRegistered  = Reply{Status: http.StatusNotFound, Text: "Not registerd!"}
	ReplyNotAllowed     = Reply{Status: http.StatusMethodNotAllowed, Text: "Not Allowed!"}
	ReplyInternalError  = Reply{Status: http.StatusInternalServerError, Text: "Internal Server Error"}

	// errors
	ErrInvalidAction = errors.New("Invalid action")
)

type (
	Service interface {
		// HandleScan processes a card read sent by a reader and returns the reply to send back.
		// A non-nil error always comes with ReplyInternalError.
		HandleScan(ctx context.Context, cardUID, deviceToken string) (Reply, error)
		// Poll serves the registration form: ActionGetUID returns the pending UID ("" when none),
		// ActionClearUID releases it.
		Poll(ctx context.Context, poll Poll) (string, error)
	}

	service struct {
		mailbox Mailbox
		bus     core.EventBus
		usrSvc  user.Service
		dvcSvc  device.Service
		attSvc  attendance.Service
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(mailbox Mailbox, bus core.EventBus, usrSvc user.Service, dvcSvc device.Service, attSvc attendance.Service, logger core.Logger) Service {
	return &service{
		mailbox: mailbox,
		bus:     bus,
		usrSvc:  usrSvc,
		dvcSvc:  dvcSvc,
		attSvc:  attSvc,
		logger:  logger,
	}
}

// MissingParams returns the reply for a request lacking card_uid and/or device_token, if any.
func MissingParams(cardUID, deviceToken string) (Reply, bool) {
	var missing []string
	if strings.TrimSpace(cardUID) == "" {
		missing = append(missing, "card_uid")
	}
	if strings.TrimSpace(deviceToken) == "" {
		missing = append(missing, "device_token")
	}
	if len(missing) == 0 {
		return Reply{}, false
	}
	return Reply{
		Status: http.StatusBadRequest,
		Text:   fmt.Sprintf("Bad Request: Missing required query parameter(s): %s.", strings.Join(missing, ", ")),
	}, true
}

func (svc *service) HandleScan(ctx context.Context, cardUID, deviceToken string) (Reply, error) {
	if reply, ok := MissingParams(cardUID, deviceToken); ok {
		return reply, nil
	}
	uid := user.NormalizeRFID(cardUID)

	dvc, err := svc.dvcSvc.GetByToken(ctx, strings.TrimSpace(deviceToken))
	if err != nil {
		if errors.Cause(err) == device.ErrNotFound {
			return ReplyDeviceNotFound, nil
		}
		return ReplyInternalError, errors.Wrap(err, "getting device")
	}
	if dvc, err = svc.dvcSvc.Touch(ctx, dvc); err != nil {
		return ReplyInternalError, errors.Wrap(err, "touching device")
	}

	usr, err := svc.usrSvc.GetByRFID(ctx, uid)
	registered := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return ReplyInternalError, errors.Wrap(err, "getting user")
	}

	switch dvc.Mode {
	case device.ModeEnrollment:
		if registered {
			return ReplyAvailable, nil
		}
		scan := Scan{UID: uid, DeviceID: dvc.ID, Timestamp: NowFunc().UTC()}
		if err = svc.mailbox.Put(ctx, scan); err != nil {
			return ReplyInternalError, errors.Wrap(err, "storing scan")
		}
		svc.publish(ctx, core.Event{
			Type:       core.EventScan,
			RFIDUID:    uid,
			DeviceID:   dvc.ID,
			Department: dvc.Department,
			Timestamp:  scan.Timestamp,
		})
		return ReplySuccessful, nil

	case device.ModeAttendance:
		if !registered {
			return ReplyNotRegistered, nil
		}
		log, err := svc.attSvc.Record(ctx, usr, dvc)
		if err != nil {
			return ReplyInternalError, err
		}
		svc.publish(ctx, core.Event{
			Type:       core.EventAttendance,
			UserID:     usr.ID,
			UserName:   usr.Name,
			RFIDUID:    uid,
			DeviceID:   dvc.ID,
			Department: dvc.Department,
			Timestamp:  log.Timestamp,
		})
		return Reply{Status: http.StatusOK, Text: "login " + usr.Name}, nil
	}
	return ReplyNotAllowed, nil
}

// publish broadcasts evt; failures only get logged since the scan itself succeeded.
func (svc *service) publish(ctx context.Context, evt core.Event) {
	if svc.bus == nil {
		return
	}
	if err := svc.bus.Publish(ctx, evt); err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing %s event: %v", evt.Type, err), err)
	}
}

func (svc *service) Poll(ctx context.Context, poll Poll) (string, error) {
	switch poll.Action {
	case ActionGetUID:
		uid, err := svc.mailbox.Get(ctx)
		return uid, errors.Wrap(err, "getting pending scan")
	case ActionClearUID:
		err := svc.mailbox.Clear(ctx, user.NormalizeRFID(poll.UID))
		return "", errors.Wrap(err, "clearing pending scan")
	}
	return "", ErrInvalidAction
}
