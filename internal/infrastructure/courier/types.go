package courier

// apiResponse is the envelope every courier API call returns
type apiResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// IsSuccess checks if the API call was successful
func (r *apiResponse) IsSuccess() bool {
	return r.Status == 0
}

type issueCodesRequest struct {
	AccountRef string `json:"account_ref"`
	Count      int    `json:"count"`
}

type issueCodesResponse struct {
	apiResponse
	Codes []string `json:"codes"`
}

type bookingRequest struct {
	AWBCode       string `json:"awb_code"`
	AccountRef    string `json:"account_ref"`
	PickupAddress string `json:"pickup_address"`
	ShipmentType  string `json:"shipment_type"`
	ConsigneeName string `json:"consignee_name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Phone         string `json:"phone"`
	CODAmount     string `json:"cod_amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

type bookingResponse struct {
	apiResponse
	TrackingNo string `json:"tracking_no"`
}

type trackRequest struct {
	AWBCode string `json:"awb_code"`
}

type trackResponse struct {
	apiResponse
	ShipmentStatus string `json:"shipment_status"`
}
