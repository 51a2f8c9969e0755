package schema

import (
	"github.com/openlattice/lattice-consent/pkg/address"
	"github.com/openlattice/lattice-consent/pkg/edm"
)

// Canonical form layout. All consent forms follow the same structure:
//   - page 0: geolocation data (invisible), consent form data (invisible)
//   - page 1: form content, client signature, staff signature (some forms),
//     additional witness signatures (some forms)
var (
	LocationSection    = address.PageSectionKey(0, 1)
	FormSection        = address.PageSectionKey(0, 2)
	FormContentSection = address.PageSectionKey(1, 1)
	ClientSection      = address.PageSectionKey(1, 2)
	StaffSection       = address.PageSectionKey(1, 3)
	WitnessSection     = address.PageSectionKey(1, 4)
)

var (
	LocationLatitudeKey  = address.EntityAddressKey(0, edm.Location, edm.LocationLatitude)
	LocationLongitudeKey = address.EntityAddressKey(0, edm.Location, edm.LocationLongitude)

	FormDescriptionKey = address.EntityAddressKey(0, edm.ConsentForms, edm.OLDescription)
	FormNameKey        = address.EntityAddressKey(0, edm.ConsentForms, edm.OLName)
	FormSchemaKey      = address.EntityAddressKey(0, edm.ConsentForms, edm.OLSchema)
	FormTypeKey        = address.EntityAddressKey(0, edm.ConsentForms, edm.OLType)
	FormContentKey     = address.EntityAddressKey(0, edm.ConsentForms, edm.OLText)

	ClientNameKey          = address.EntityAddressKey(0, edm.ElectronicSignatures, edm.OLName)
	ClientSignatureDateKey = address.EntityAddressKey(0, edm.ElectronicSignatures, edm.OLDateTime)
	ClientSignatureDataKey = address.EntityAddressKey(0, edm.ElectronicSignatures, edm.OLSignatureData)

	StaffNameKey          = address.EntityAddressKey(1, edm.ElectronicSignatures, edm.OLName)
	StaffSignatureDateKey = address.EntityAddressKey(1, edm.ElectronicSignatures, edm.OLDateTime)
	StaffSignatureDataKey = address.EntityAddressKey(1, edm.ElectronicSignatures, edm.OLSignatureData)

	WitnessSignatureNameKey = address.EntityAddressKey(address.RepeatableIndex, edm.ElectronicSignatures, edm.OLName)
	WitnessSignatureDateKey = address.EntityAddressKey(address.RepeatableIndex, edm.ElectronicSignatures, edm.OLDateTime)
	WitnessSignatureDataKey = address.EntityAddressKey(address.RepeatableIndex, edm.ElectronicSignatures, edm.OLSignatureData)
	WitnessPersonNameKey    = address.EntityAddressKey(address.RepeatableIndex, edm.Witnesses, edm.GenFullName)
)
