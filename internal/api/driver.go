package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/liftme/liftme-go/internal/entities"
)

// DriverVehicle returns the driver's equipment profile, or nil when the
// profile has not been filled in yet.
func (c *Client) DriverVehicle(ctx context.Context) (*entities.DriverVehicle, error) {
	var vehicle entities.DriverVehicle
	err := c.do(ctx, http.MethodGet, "/driver/vehicle", nil, &vehicle)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vehicle.PhotoURL = c.FileURL(vehicle.PhotoURL)
	return &vehicle, nil
}

// SaveDriverVehicle creates or updates the vehicle profile. With a photo the
// request goes out as multipart, without one as plain JSON, mirroring what
// the gateway expects.
func (c *Client) SaveDriverVehicle(ctx context.Context, vehicle entities.DriverVehicle, photoName string, photo io.Reader) (entities.DriverVehicle, error) {
	var saved entities.DriverVehicle

	if photo == nil {
		if err := c.do(ctx, http.MethodPost, "/driver/vehicle", vehicle, &saved); err != nil {
			return entities.DriverVehicle{}, err
		}
		return saved, nil
	}

	fields := map[string]string{
		"equipmentTypeId": strconv.FormatInt(vehicle.EquipmentTypeID, 10),
		"model":           vehicle.Model,
		"plateNumber":     vehicle.PlateNumber,
		"color":           vehicle.Color,
	}
	if vehicle.Year > 0 {
		fields["year"] = strconv.Itoa(vehicle.Year)
	}
	if err := c.doMultipart(ctx, "/driver/vehicle", fields, "photo", photoName, photo, &saved); err != nil {
		return entities.DriverVehicle{}, err
	}
	saved.PhotoURL = c.FileURL(saved.PhotoURL)
	return saved, nil
}

func (c *Client) DriverDocuments(ctx context.Context) ([]entities.DriverDocument, error) {
	var docs []entities.DriverDocument
	err := c.do(ctx, http.MethodGet, "/driver/documents", nil, &docs)
	return docs, err
}

func (c *Client) UploadDriverDocument(ctx context.Context, docType entities.DocumentType, side entities.DocumentSide, fileName string, file io.Reader) (entities.DriverDocument, error) {
	fields := map[string]string{
		"documentType": string(docType),
		"side":         string(side),
	}
	var doc entities.DriverDocument
	if err := c.doMultipart(ctx, "/driver/documents", fields, "file", fileName, file, &doc); err != nil {
		return entities.DriverDocument{}, err
	}
	doc.URL = c.FileURL(doc.URL)
	return doc, nil
}
