package carhire

import (
	"time"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

// Collection names.
const (
	Booking  = "Booking"
	Vehicle  = "Vehicle"
	Customer = "Customer"
	Employee = "Employee"
)

// SettingsFile is the settings document the select fields draw their options from.
const SettingsFile = "collections.json"

func setting(path string) string {
	return SettingsFile + "#" + path
}

func now(t time.Time) any {
	return t
}

// BookingSpec describes Booking. BookingId is minted by the create hook.
func BookingSpec(hooks Hooks) cs.CollectionSpec {
	return cs.CollectionSpec{
		Name: Booking,
		Fields: []cs.FieldShape{
			{Name: "BookingId", Type: cs.TypeString, Required: true, Unique: true, Meta: cs.FieldMeta{
				Label: "Booking ID", Placeholder: "Enter booking ID", InputType: "text", Readonly: true,
			}},
			{Name: "CustomerId", Type: cs.TypeRef, Ref: Customer, Required: true, Meta: cs.FieldMeta{
				Label: "Customer", Placeholder: "Select customer", InputType: "select",
			}},
			{Name: "BookingDate", Type: cs.TypeDate, Default: now, Meta: cs.FieldMeta{
				Label: "Booking Date", Placeholder: "Select booking date", InputType: "date",
			}},
			{Name: "PickupLocation", Type: cs.TypeString, Meta: cs.FieldMeta{
				Label: "Pickup Location", Placeholder: "Enter pickup location", InputType: "text",
			}},
			{Name: "StartDate", Type: cs.TypeDate, Required: true, Meta: cs.FieldMeta{
				Label: "Start Date", Placeholder: "Select start date", InputType: "date",
			}},
			{Name: "StartTime", Type: cs.TypeString, Meta: cs.FieldMeta{
				Label: "Start Time", Placeholder: "Select start time", InputType: "time",
			}},
			{Name: "ReturnDate", Type: cs.TypeDate, Meta: cs.FieldMeta{
				Label: "Return Date", Placeholder: "Select return date", InputType: "date",
			}},
			{Name: "ReturnTime", Type: cs.TypeString, Meta: cs.FieldMeta{
				Label: "Return Time", Placeholder: "Select return time", InputType: "time",
			}},
			{Name: "CarId", Type: cs.TypeRef, Ref: Vehicle, Required: true, Meta: cs.FieldMeta{
				Label: "Vehicle", Placeholder: "Select vehicle", InputType: "select",
			}},
			{Name: "DropoffLocation", Type: cs.TypeString, Meta: cs.FieldMeta{
				Label: "Dropoff Location", Placeholder: "Enter dropoff location", InputType: "text",
			}},
		},
		BeforeCreate: []cs.Hook{hooks.bookingID},
	}
}

// VehicleSpec describes Vehicle. Make, Model, Category and Fuel draw options from the settings file.
func VehicleSpec() cs.CollectionSpec {
	return cs.CollectionSpec{
		Name: Vehicle,
		Fields: []cs.FieldShape{
			{Name: "VehicleId", Type: cs.TypeString, Required: true, Unique: true, Meta: cs.FieldMeta{
				Label: "Vehicle ID", Placeholder: "Enter vehicle ID", InputType: "text",
			}},
			{Name: "Make", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
				Label: "Make", Placeholder: "Select or enter make", InputType: "select",
				Setting: setting("vehicle.make"),
			}},
			{Name: "Model", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
				Label: "Model", Placeholder: "Select or enter model", InputType: "select",
				Setting: setting("vehicle.make.model"),
			}},
			{Name: "Category", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
				Label: "Category", Placeholder: "Select category", InputType: "select",
				Setting: setting("vehicle.category"),
			}},
			{Name: "Passengers", Type: cs.TypeNumber, Required: true, Meta: cs.FieldMeta{
				Label: "Number of Passengers", Placeholder: "Enter number of passengers", InputType: "number",
			}},
			{Name: "Capacity", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
				Label: "Capacity", Placeholder: "Enter capacity", InputType: "text",
			}},
			{Name: "Fuel", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
				Label: "Fuel Type", Placeholder: "Select fuel type", InputType: "select",
				Setting: setting("vehicle.fuel"),
			}},
			{Name: "DateOfPurchase", Type: cs.TypeDate, Required: true, Meta: cs.FieldMeta{
				Label: "Purchase Date", Placeholder: "Select purchase date", InputType: "date",
			}},
			{Name: "Availability", Type: cs.TypeBoolean, Meta: cs.FieldMeta{
				Label: "Available", Placeholder: "Select availability", InputType: "checkbox", Readonly: true,
			}},
			{Name: "CostPerDay", Type: cs.TypeNumber, Required: true, Meta: cs.FieldMeta{
				Label: "Cost per Day", Placeholder: "Enter daily cost", InputType: "number", Step: 0.01,
			}},
		},
	}
}

// personFields are shared by customers and employees.
func personFields() []cs.FieldShape {
	return []cs.FieldShape{
		{Name: "Gender", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Gender", Placeholder: "Select gender", InputType: "select",
			Setting: setting("customer.gender"),
		}},
		{Name: "Forename", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "First Name", Placeholder: "Enter first name", InputType: "text",
		}},
		{Name: "Surname", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Last Name", Placeholder: "Enter last name", InputType: "text",
		}},
		{Name: "DateOfBirth", Type: cs.TypeDate, Required: true, Meta: cs.FieldMeta{
			Label: "Date of Birth", Placeholder: "Select date of birth", InputType: "date",
		}},
		{Name: "LicenceNumber", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Licence Number", Placeholder: "Enter licence number", InputType: "text",
		}},
		{Name: "Street", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Street Address", Placeholder: "Enter street address", InputType: "text",
		}},
		{Name: "Town", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Town/City", Placeholder: "Enter town or city", InputType: "text",
		}},
		{Name: "Postcode", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Postcode", Placeholder: "Enter postcode", InputType: "text",
		}},
		{Name: "Phone", Type: cs.TypeString, Required: true, Meta: cs.FieldMeta{
			Label: "Phone Number", Placeholder: "Enter phone number", InputType: "tel",
		}},
	}
}

func CustomerSpec() cs.CollectionSpec {
	fields := []cs.FieldShape{
		{Name: "CustomerId", Type: cs.TypeString, Required: true, Unique: true, Meta: cs.FieldMeta{
			Label: "Customer ID (Email)", Placeholder: "Enter customer email", InputType: "email",
		}},
	}

	return cs.CollectionSpec{Name: Customer, Fields: append(fields, personFields()...)}
}

// EmployeeSpec describes Employee. Password is hashed by the hooks and never returned.
func EmployeeSpec(hooks Hooks) cs.CollectionSpec {
	fields := []cs.FieldShape{
		{Name: "EmployeeId", Type: cs.TypeString, Required: true, Unique: true, Meta: cs.FieldMeta{
			Label: "Employee ID (Email)", Placeholder: "Enter employee email", InputType: "email",
		}},
		{Name: "Password", Type: cs.TypeString, Required: true, Hidden: true, Meta: cs.FieldMeta{
			Label: "Password", Placeholder: "Enter password", InputType: "password",
		}},
	}

	return cs.CollectionSpec{
		Name:         Employee,
		Fields:       append(fields, personFields()...),
		BeforeCreate: []cs.Hook{hooks.hashPassword},
		BeforeUpdate: []cs.Hook{hooks.rehashPassword},
	}
}

// NewRegistry registers all car-hire collections.
func NewRegistry(hooks Hooks) (*cs.Registry, error) {
	return cs.NewRegistry(
		BookingSpec(hooks),
		CustomerSpec(),
		VehicleSpec(),
		EmployeeSpec(hooks),
	)
}
