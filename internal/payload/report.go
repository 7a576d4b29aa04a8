package payload

import (
	"fmt"
	"strings"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

type statusCopy struct {
	title string
	// body is formatted with the report type.
	body string
}

var (
	statusDispatched = statusCopy{title: "🚑 Responders Dispatched", body: "Help is on the way! Responders have been dispatched to your %s report"}
	statusResolved   = statusCopy{title: "✅ Report Resolved", body: "Your %s report has been resolved"}
	statusCancelled  = statusCopy{title: "❌ Report Cancelled", body: "Your %s report has been cancelled"}
	statusPending    = statusCopy{title: "⏳ Report Pending", body: "Your %s report is pending review"}
)

// statusTable is keyed by lower-cased status.
var statusTable = map[string]statusCopy{
	"responding":  statusDispatched,
	"in-progress": statusDispatched,
	"in_progress": statusDispatched,
	"in progress": statusDispatched,
	"resolved":    statusResolved,
	"completed":   statusResolved,
	"cancelled":   statusCancelled,
	"canceled":    statusCancelled,
	"rejected":    statusCancelled,
	"pending":     statusPending,
}

// ReportCreated alerts administrators about a newly filed report.
func (b *Builder) ReportCreated(r notification.Report) notification.Payload {
	reportType := typeOrDefault(r.Type)

	data := map[string]string{
		notification.DataKeyType: string(notification.KindNewReport),
		"reportId":               r.ID,
		"reportType":             reportType,
	}
	if area := strings.TrimSpace(r.Barangay); area != "" {
		data["barangay"] = area
	}

	return notification.Payload{
		Kind:  notification.KindNewReport,
		Title: "🚨 New Emergency Report",
		Body:  fmt.Sprintf("A new %s report has been submitted%s.", reportType, locationSuffix(r.Barangay)),
		Data:  data,
	}
}

// ReportStatusChanged tells the report's creator about a status move.
// ok is false when the status did not change.
func (b *Builder) ReportStatusChanged(c notification.ReportChange) (p notification.Payload, ok bool) {
	if !c.StatusChanged() {
		return notification.Payload{}, false
	}

	r := c.After
	reportType := typeOrDefault(r.Type)
	newStatus := strings.TrimSpace(r.Status)

	var title, body string
	if sc, found := statusTable[strings.ToLower(newStatus)]; found {
		title = sc.title
		body = fmt.Sprintf(sc.body, reportType)
	} else {
		title = "📋 Report Status Updated"
		body = fmt.Sprintf("Your %s report status updated: %s", reportType, newStatus)
	}
	body += locationSuffix(r.Barangay) + "."

	data := map[string]string{
		notification.DataKeyType: string(notification.KindReportStatus),
		"reportId":               r.ID,
		"reportType":             reportType,
		"oldStatus":              strings.TrimSpace(c.Before.Status),
		"newStatus":              newStatus,
	}
	if area := strings.TrimSpace(r.Barangay); area != "" {
		data["barangay"] = area
	}

	return notification.Payload{
		Kind:  notification.KindReportStatus,
		Title: title,
		Body:  body,
		Data:  data,
	}, true
}

func typeOrDefault(t string) string {
	if t = strings.TrimSpace(t); t != "" {
		return strings.ToLower(t)
	}
	return "emergency"
}

func locationSuffix(area string) string {
	if area = strings.TrimSpace(area); area != "" {
		return " in " + area
	}
	return ""
}
